package tally

import (
	"fmt"

	"RadNode/internal/radon"
)

// Clustering selects how value reports are grouped.
type Clustering uint8

const (
	// ByValue groups reports whose values are structurally equal.
	ByValue Clustering = iota

	// ByType groups reports whose values share a variant. Used when sources
	// legitimately disagree on the exact value, e.g. prices from different venues.
	ByType
)

// String returns the clustering name.
func (c Clustering) String() string {
	if c == ByType {
		return "by-type"
	}

	return "by-value"
}

// ParseClustering resolves a clustering name.
func ParseClustering(s string) (Clustering, error) {
	switch s {
	case "", "by-value":
		return ByValue, nil
	case "by-type":
		return ByType, nil
	}

	return ByValue, fmt.Errorf("unknown clustering %q", s)
}

// Options parametrizes a precondition evaluation.
type Options struct {
	MinConsensusRatio float64     // MinConsensusRatio is the required share in (0, 1]
	CommitsCount      int         // CommitsCount is the expected number of participants
	Clustering        Clustering  // Clustering selects the grouping rule
	Stage             radon.Stage // Stage tags the final report, defaults to tally
}

// Kind tells which group won the precondition.
type Kind uint8

const (
	// MajorityOfValues means a value cluster reached consensus.
	MajorityOfValues Kind = iota + 1
	// MajorityOfErrors means the error reports reached consensus.
	MajorityOfErrors
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case MajorityOfValues:
		return "MajorityOfValues"
	case MajorityOfErrors:
		return "MajorityOfErrors"
	}

	return "Unknown"
}

// Result is the outcome of a successful precondition clause. Liars and Errors
// are aligned with the input reports.
type Result struct {
	Kind       Kind          // Kind tells which group won
	Values     []radon.Value // Values are the majority cluster's values, in input order
	ErrorsMode *radon.Error  // ErrorsMode is the most common error, for MajorityOfErrors
	Liars      []bool        // Liars marks reports that disagree with the consensus
	Errors     []bool        // Errors marks error reports
}

// cluster is a group of report indexes sharing a value or a variant.
type cluster struct {
	rep     radon.Value // rep is the value of the first member
	members []int       // members are input indexes in ascending order
}

// Precondition partitions reports into a majority cluster, liars and errors.
//
// The largest value cluster wins when it is strictly larger than the set of
// error reports; otherwise the error set is the dominant group. Ties between
// clusters, and between error payloads, go to the one seen first in input
// order. The winning group must reach MinConsensusRatio of
// max(CommitsCount, len(reports)) or the clause fails with InsufficientConsensus.
func Precondition(reports []radon.Report, opts Options) (Result, error) {
	if len(reports) == 0 {
		return Result{}, radon.NewError(radon.ErrNoReports)
	}

	if !(opts.MinConsensusRatio > 0 && opts.MinConsensusRatio <= 1) {
		return Result{}, radon.NewError(radon.ErrWrongArguments,
			radon.String("RadonTally"), radon.String("Precondition"),
			radon.String(fmt.Sprintf("[Float(%v)]", opts.MinConsensusRatio)))
	}

	commits := opts.CommitsCount
	if commits < len(reports) {
		commits = len(reports)
	}

	var (
		clusters  []*cluster
		errorIdx  []int
		errorsSet = make([]bool, len(reports))
	)

	for i, r := range reports {
		if r.IsError() {
			errorIdx = append(errorIdx, i)
			errorsSet[i] = true
			continue
		}

		clusters = addToCluster(clusters, r.Value, i, opts.Clustering)
	}

	var majority *cluster
	for _, c := range clusters {
		if majority == nil || len(c.members) > len(majority.members) {
			majority = c
		}
	}

	majoritySize := 0
	if majority != nil {
		majoritySize = len(majority.members)
	}

	if majoritySize > len(errorIdx) {
		achieved := float64(majoritySize) / float64(commits)
		if achieved < opts.MinConsensusRatio {
			return Result{}, radon.NewInsufficientConsensusError(achieved, opts.MinConsensusRatio)
		}

		return valuesResult(reports, majority, errorsSet), nil
	}

	achieved := float64(len(errorIdx)) / float64(commits)
	if achieved < opts.MinConsensusRatio {
		return Result{}, radon.NewInsufficientConsensusError(achieved, opts.MinConsensusRatio)
	}

	return errorsResult(reports, errorIdx, errorsSet), nil
}

// addToCluster appends index i to the cluster matching v, creating one if needed.
func addToCluster(clusters []*cluster, v radon.Value, i int, mode Clustering) []*cluster {
	for _, c := range clusters {
		if matches(c.rep, v, mode) {
			c.members = append(c.members, i)
			return clusters
		}
	}

	return append(clusters, &cluster{rep: v, members: []int{i}})
}

// matches reports whether v belongs to the cluster represented by rep.
func matches(rep, v radon.Value, mode Clustering) bool {
	if mode == ByType {
		return rep.Type() == v.Type()
	}

	return radon.Equal(rep, v)
}

// valuesResult builds a MajorityOfValues result for the given cluster.
func valuesResult(reports []radon.Report, majority *cluster, errorsSet []bool) Result {
	inMajority := make([]bool, len(reports))
	values := make([]radon.Value, 0, len(majority.members))

	for _, i := range majority.members {
		inMajority[i] = true
		values = append(values, reports[i].Value)
	}

	liars := make([]bool, len(reports))
	for i := range reports {
		liars[i] = !inMajority[i] && !errorsSet[i]
	}

	return Result{Kind: MajorityOfValues, Values: values, Liars: liars, Errors: errorsSet}
}

// errorsResult builds a MajorityOfErrors result: every value report is a liar.
func errorsResult(reports []radon.Report, errorIdx []int, errorsSet []bool) Result {
	var (
		modes  []*radon.Error
		counts []int
	)

	for _, i := range errorIdx {
		payload := reports[i].ErrorPayload()

		found := false
		for j, m := range modes {
			if m.Equal(payload) {
				counts[j]++
				found = true
				break
			}
		}

		if !found {
			modes = append(modes, payload)
			counts = append(counts, 1)
		}
	}

	best := 0
	for j := range counts {
		if counts[j] > counts[best] {
			best = j
		}
	}

	liars := make([]bool, len(reports))
	for i := range reports {
		liars[i] = !errorsSet[i]
	}

	return Result{Kind: MajorityOfErrors, ErrorsMode: modes[best], Liars: liars, Errors: errorsSet}
}

// Run evaluates the precondition and folds the outcome into one final report.
//
// With a majority of values the script runs over the surviving values,
// wrapped in an Array; script failures are recovered into the report. With a
// majority of errors the report carries the most common error as its value.
// Insufficient consensus is returned as an error, together with a failed
// report carrying the same payload.
func Run(reports []radon.Report, script radon.Script, opts Options, settings radon.Settings) (radon.Report, error) {
	stage := opts.Stage
	if stage == "" {
		stage = radon.StageTally
	}

	result, err := Precondition(reports, opts)
	if err != nil {
		return radon.NewErrorReport(radon.AsError(err), stage), err
	}

	checkBitmaps(result, len(reports))

	var report radon.Report

	switch result.Kind {
	case MajorityOfValues:
		report = radon.Execute(radon.Array(result.Values), script, stage, settings)
	case MajorityOfErrors:
		report = radon.NewValueReport(result.ErrorsMode, stage)
	}

	report.Context.Liars = result.Liars
	report.Context.Errors = result.Errors

	return report, nil
}

// checkBitmaps panics when the result breaks the positional bitmap invariant.
func checkBitmaps(result Result, n int) {
	if len(result.Liars) != n || len(result.Errors) != n {
		panic(fmt.Sprintf("tally: bitmap length mismatch: liars=%d errors=%d reports=%d",
			len(result.Liars), len(result.Errors), n))
	}
}

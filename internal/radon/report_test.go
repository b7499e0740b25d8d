package radon

import (
	"testing"
	"time"

	"github.com/google/uuid"
)

// TestReportRoundTrip verifies reports keep outcome and context through CBOR.
func TestReportRoundTrip(t *testing.T) {
	start := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	reports := []Report{
		{
			Value: Map{"price": Float(1.5)},
			Context: ReportContext{
				Stage:          StageTally,
				StartTime:      start,
				CompletionTime: start.Add(25 * time.Millisecond),
				PartialResults: []Value{String("in"), Float(1.5)},
				Liars:          []bool{false, true},
				Errors:         []bool{false, false},
				RunID:          uuid.New(),
				GasUsed:        12,
			},
		},
		NewErrorReport(NewError(ErrRetrieveTimeout), StageRetrieval),
		NewValueReport(NewError(ErrHTTPStatus, NewInteger(404)), StageAggregation),
	}

	for _, r := range reports {
		data, err := EncodeReport(r)
		if err != nil {
			t.Fatalf("encode %s: %v", r, err)
		}

		decoded, err := DecodeReport(data)
		if err != nil {
			t.Fatalf("decode %s: %v", r, err)
		}

		if !SameOutcome(r, decoded) {
			t.Errorf("outcome mismatch: %s vs %s", r, decoded)
		}

		if decoded.Context.Stage != r.Context.Stage || decoded.Context.RunID != r.Context.RunID {
			t.Errorf("context mismatch: %+v vs %+v", decoded.Context, r.Context)
		}

		if decoded.Context.Elapsed() != r.Context.Elapsed() {
			t.Errorf("elapsed %v, want %v", decoded.Context.Elapsed(), r.Context.Elapsed())
		}

		if !ValuesEqual(decoded.Context.PartialResults, r.Context.PartialResults) {
			t.Errorf("partial results mismatch")
		}

		if len(decoded.Context.Liars) != len(r.Context.Liars) {
			t.Errorf("liars mismatch")
		}
	}
}

// TestReportErrorClassification verifies both error shapes count as errors.
func TestReportErrorClassification(t *testing.T) {
	failed := NewErrorReport(NewError(ErrHTTP, String("refused")), StageRetrieval)
	errValue := NewValueReport(NewError(ErrHTTP, String("refused")), StageRetrieval)
	ok := NewValueReport(NewInteger(1), StageRetrieval)

	if !failed.IsError() || !errValue.IsError() || ok.IsError() {
		t.Fatal("error classification is wrong")
	}

	if !failed.ErrorPayload().Equal(errValue.ErrorPayload()) {
		t.Error("payloads should be equal")
	}

	if SameOutcome(failed, errValue) {
		t.Error("a failure and an Error value are different outcomes")
	}

	if _, err := failed.Outcome(); !IsCode(err, ErrHTTP) {
		t.Errorf("outcome error = %v", err)
	}
}

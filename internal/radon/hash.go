package radon

import (
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"fmt"

	"golang.org/x/crypto/blake2b"
	"golang.org/x/crypto/blake2s"
	"golang.org/x/crypto/ripemd160"
	"golang.org/x/crypto/sha3"
)

// HashFunction identifies a digest algorithm accepted by the Hash operators.
type HashFunction uint8

// Hash function codes.
const (
	HashBlake256   HashFunction = 0x00
	HashBlake512   HashFunction = 0x01
	HashBlake2s256 HashFunction = 0x02
	HashBlake2b512 HashFunction = 0x03
	HashMD5        HashFunction = 0x04
	HashRipemd128  HashFunction = 0x05
	HashRipemd160  HashFunction = 0x06
	HashRipemd320  HashFunction = 0x07
	HashSHA1       HashFunction = 0x08
	HashSHA2224    HashFunction = 0x09
	HashSHA2256    HashFunction = 0x0A
	HashSHA2384    HashFunction = 0x0B
	HashSHA2512    HashFunction = 0x0C
	HashSHA3224    HashFunction = 0x0D
	HashSHA3256    HashFunction = 0x0E
	HashSHA3384    HashFunction = 0x0F
	HashSHA3512    HashFunction = 0x10
	HashFail       HashFunction = 0xFF
)

// hashFunctionNames lists every known code; codes missing here are invalid arguments.
var hashFunctionNames = map[HashFunction]string{
	HashBlake256:   "Blake256",
	HashBlake512:   "Blake512",
	HashBlake2s256: "Blake2s256",
	HashBlake2b512: "Blake2b512",
	HashMD5:        "MD5_128",
	HashRipemd128:  "Ripemd128",
	HashRipemd160:  "Ripemd160",
	HashRipemd320:  "Ripemd320",
	HashSHA1:       "SHA1_160",
	HashSHA2224:    "SHA2_224",
	HashSHA2256:    "SHA2_256",
	HashSHA2384:    "SHA2_384",
	HashSHA2512:    "SHA2_512",
	HashSHA3224:    "SHA3_224",
	HashSHA3256:    "SHA3_256",
	HashSHA3384:    "SHA3_384",
	HashSHA3512:    "SHA3_512",
	HashFail:       "Fail",
}

// hashFunctions holds the implemented digests.
var hashFunctions = map[HashFunction]func([]byte) []byte{
	HashBlake2s256: func(b []byte) []byte { d := blake2s.Sum256(b); return d[:] },
	HashBlake2b512: func(b []byte) []byte { d := blake2b.Sum512(b); return d[:] },
	HashMD5:        func(b []byte) []byte { d := md5.Sum(b); return d[:] },
	HashRipemd160: func(b []byte) []byte {
		h := ripemd160.New()
		h.Write(b)
		return h.Sum(nil)
	},
	HashSHA1:    func(b []byte) []byte { d := sha1.Sum(b); return d[:] },
	HashSHA2224: func(b []byte) []byte { d := sha256.Sum224(b); return d[:] },
	HashSHA2256: func(b []byte) []byte { d := sha256.Sum256(b); return d[:] },
	HashSHA2384: func(b []byte) []byte { d := sha512.Sum384(b); return d[:] },
	HashSHA2512: func(b []byte) []byte { d := sha512.Sum512(b); return d[:] },
	HashSHA3224: func(b []byte) []byte { d := sha3.Sum224(b); return d[:] },
	HashSHA3256: func(b []byte) []byte { d := sha3.Sum256(b); return d[:] },
	HashSHA3384: func(b []byte) []byte { d := sha3.Sum384(b); return d[:] },
	HashSHA3512: func(b []byte) []byte { d := sha3.Sum512(b); return d[:] },
}

// String returns the name of the hash function.
func (h HashFunction) String() string {
	if name, ok := hashFunctionNames[h]; ok {
		return name
	}

	return fmt.Sprintf("HashFunction(0x%02x)", uint8(h))
}

// Hash computes the digest of data. Known but unimplemented functions fail
// with UnsupportedHashFunction.
func Hash(data []byte, fn HashFunction) ([]byte, error) {
	impl, ok := hashFunctions[fn]
	if !ok {
		return nil, NewError(ErrUnsupportedHashFunction, String(fn.String()))
	}

	return impl(data), nil
}

// hashArgs decodes the hash function argument of a Hash operator and digests data.
// Codes outside the known table are WrongArguments.
func hashArgs(t Type, code OpCode, data []byte, args []any) ([]byte, error) {
	if len(args) != 1 {
		return nil, wrongArgs(t, code, args)
	}

	n, ok := smallUint(args[0])
	if !ok || n > 0xFF {
		return nil, wrongArgs(t, code, args)
	}

	fn := HashFunction(n)
	if _, known := hashFunctionNames[fn]; !known {
		return nil, wrongArgs(t, code, args)
	}

	return Hash(data, fn)
}

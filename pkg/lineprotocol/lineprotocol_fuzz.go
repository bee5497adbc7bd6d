//go:build gofuzz
// +build gofuzz

package lineprotocol

func Fuzz(data []byte) int {
	p, err := Parse(string(data))
	if err != nil {
		return 0
	}
	if _, err := Parse(p.String()); err != nil {
		panic(err)
	}
	return 1
}

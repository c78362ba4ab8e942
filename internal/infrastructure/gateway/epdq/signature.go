package epdq

import (
	"crypto/sha512"
	"encoding/hex"
	"net/url"
	"sort"
	"strings"
)

const signatureParam = "SHASIGN"

// Sign computes ePDQ's SHA-512 signature: every non-empty parameter, uppercased key and
// sorted, written as KEY=value followed by the passphrase.
func Sign(params url.Values, passphrase string) string {
	type pair struct{ key, value string }

	pairs := make([]pair, 0, len(params))
	for key, values := range params {
		upper := strings.ToUpper(key)
		if upper == signatureParam || len(values) == 0 || values[0] == "" {
			continue
		}
		pairs = append(pairs, pair{key: upper, value: values[0]})
	}
	sort.Slice(pairs, func(i, j int) bool { return pairs[i].key < pairs[j].key })

	var b strings.Builder
	for _, p := range pairs {
		b.WriteString(p.key)
		b.WriteByte('=')
		b.WriteString(p.value)
		b.WriteString(passphrase)
	}

	sum := sha512.Sum512([]byte(b.String()))
	return strings.ToUpper(hex.EncodeToString(sum[:]))
}

package webhook

import (
	"crypto/hmac"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"hash"
	"net/http"
	"regexp"
	"strings"
)

// authenticate verifies one request against the hook's auth spec.
// globalToken is the configured fallback for bearer hooks without a
// token of their own.
func authenticate(r *http.Request, body []byte, spec AuthSpec, globalToken string) bool {
	switch spec.Type {
	case AuthBearer:
		return checkBearer(r, spec.Token, globalToken)
	case AuthHMAC:
		return checkHMAC(r, body, spec)
	default:
		return false
	}
}

func checkBearer(r *http.Request, token, globalToken string) bool {
	expected := token
	if expected == "" {
		expected = globalToken
	}
	if expected == "" {
		return false
	}
	header := r.Header.Get("Authorization")
	presented, ok := strings.CutPrefix(header, "Bearer ")
	if !ok {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(presented), []byte(expected)) == 1
}

func hashFor(algorithm string) func() hash.Hash {
	switch strings.ToLower(algorithm) {
	case "sha1":
		return sha1.New
	case "sha512":
		return sha512.New
	default:
		return sha256.New
	}
}

// checkHMAC verifies a signature header. The signed payload is the raw
// body, or payload-prefix + "." + body when the hook configures a
// prefix-extraction regex over the header value.
func checkHMAC(r *http.Request, body []byte, spec AuthSpec) bool {
	if spec.Secret == "" || spec.SignatureHeader == "" {
		return false
	}
	header := r.Header.Get(spec.SignatureHeader)
	if header == "" {
		return false
	}

	presented := header
	switch {
	case spec.SignatureRegex != "":
		re, err := regexp.Compile(spec.SignatureRegex)
		if err != nil {
			log.Warnf("Bad signature regex: %v", err)
			return false
		}
		m := re.FindStringSubmatch(header)
		if len(m) < 2 {
			return false
		}
		presented = m[1]
	case spec.SignaturePrefix != "":
		var ok bool
		presented, ok = strings.CutPrefix(header, spec.SignaturePrefix)
		if !ok {
			return false
		}
	}

	signed := body
	if spec.PayloadPrefixRegex != "" {
		re, err := regexp.Compile(spec.PayloadPrefixRegex)
		if err != nil {
			log.Warnf("Bad payload prefix regex: %v", err)
			return false
		}
		m := re.FindStringSubmatch(header)
		if len(m) < 2 {
			return false
		}
		signed = append([]byte(m[1]+"."), body...)
	}

	mac := hmac.New(hashFor(spec.Algorithm), []byte(spec.Secret))
	mac.Write(signed)
	sum := mac.Sum(nil)

	var computed string
	if strings.ToLower(spec.Encoding) == "base64" {
		computed = base64.StdEncoding.EncodeToString(sum)
	} else {
		computed = hex.EncodeToString(sum)
	}
	return subtle.ConstantTimeCompare([]byte(presented), []byte(computed)) == 1
}

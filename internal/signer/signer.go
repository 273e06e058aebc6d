package signer

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// Credentials pair sent to the exchange. Secret never leaves the process.
type Credentials struct {
	Key    string
	Secret string
}

// Request describes one call to be signed.
type Request struct {
	Method string
	Path   string
	Params map[string]string
	Body   any
}

// Envelope carries the signature together with the exact query string and
// body bytes that were hashed, so the caller can send them unchanged.
type Envelope struct {
	Timestamp string
	Signature string
	PreHash   string
	Query     string
	Body      []byte
}

// Sign builds the pre-hash for req at the given timestamp (ms since epoch)
// and signs it with secret.
func Sign(secret string, timestamp int64, req Request) (Envelope, error) {
	if secret == "" {
		return Envelope{}, &ConfigurationError{Name: "API_SECRET"}
	}

	query := EncodeQuery(req.Params)
	body, err := EncodeBody(req.Body)
	if err != nil {
		return Envelope{}, err
	}

	ts := strconv.FormatInt(timestamp, 10)
	preHash := PreHash(ts, req.Method, req.Path, query, body)

	return Envelope{
		Timestamp: ts,
		Signature: hexHMAC(secret, preHash),
		PreHash:   preHash,
		Query:     query,
		Body:      body,
	}, nil
}

// PreHash concatenates the signed fields with no separators.
func PreHash(timestamp, method, path, query string, body []byte) string {
	var sb strings.Builder
	sb.WriteString(timestamp)
	sb.WriteString(strings.ToUpper(method))
	sb.WriteString(path)
	sb.WriteString(query)
	sb.Write(body)
	return sb.String()
}

// EncodeQuery renders params as key=value pairs sorted by key.
func EncodeQuery(params map[string]string) string {
	if len(params) == 0 {
		return ""
	}

	values := url.Values{}
	for key, value := range params {
		values.Set(key, value)
	}
	return values.Encode()
}

// EncodeBody marshals body to JSON. A nil body, or one that encodes to
// null or an empty object, yields no bytes.
func EncodeBody(body any) ([]byte, error) {
	if body == nil {
		return nil, nil
	}

	var b []byte
	switch v := body.(type) {
	case json.RawMessage:
		b = v
	case []byte:
		b = v
	default:
		var err error
		b, err = json.Marshal(body)
		if err != nil {
			return nil, errors.Wrap(err, "encode body")
		}
	}

	switch strings.TrimSpace(string(b)) {
	case "", "null", "{}":
		return nil, nil
	}
	return b, nil
}

// Verify reports whether signature is the HMAC of preHash under secret.
func Verify(secret, preHash, signature string) bool {
	expected := hexHMAC(secret, preHash)
	return hmac.Equal([]byte(expected), []byte(strings.ToLower(signature)))
}

func hexHMAC(secret, message string) string {
	h := hmac.New(sha256.New, []byte(secret))
	h.Write([]byte(message))
	return hex.EncodeToString(h.Sum(nil))
}

// Clock returns the current time.
type Clock func() time.Time

// Signer binds credentials to a clock.
type Signer struct {
	creds Credentials
	now   Clock
}

func New(creds Credentials, now Clock) *Signer {
	if now == nil {
		now = time.Now
	}
	return &Signer{creds: creds, now: now}
}

func (s *Signer) Key() string {
	return s.creds.Key
}

// Sign reads the clock once; the same timestamp is used in the pre-hash and
// returned for the header.
func (s *Signer) Sign(req Request) (Envelope, error) {
	return Sign(s.creds.Secret, s.now().UnixMilli(), req)
}

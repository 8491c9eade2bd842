package coinbase

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/lukehollenback/neutrino/exchange"
)

//
// Credentials holds a Coinbase Exchange API key set. It is immutable once created and refuses to
// print or serialize its secret material.
//
type Credentials struct {
	key        string
	secret     string
	passphrase string
}

func NewCredentials(key string, secret string, passphrase string) Credentials {
	return Credentials{
		key:        key,
		secret:     secret,
		passphrase: passphrase,
	}
}

func (o Credentials) Key() string {
	return o.key
}

//
// Empty returns whether or not no part of the key set was provided at all, which is how
// unauthenticated (public endpoint only) usage is expressed.
//
func (o Credentials) Empty() bool {
	return o.key == "" && o.secret == "" && o.passphrase == ""
}

func (o Credentials) String() string {
	key := o.key
	if len(key) > 4 {
		key = key[:4] + strings.Repeat("*", len(key)-4)
	}

	return fmt.Sprintf("Credentials{key: %s, secret: <redacted>, passphrase: <redacted>}", key)
}

func (o Credentials) GoString() string {
	return o.String()
}

func (o Credentials) MarshalJSON() ([]byte, error) {
	return nil, errors.New("credentials cannot be serialized")
}

//
// Descriptor describes a single outgoing request for the purpose of signing it.
//
type Descriptor struct {
	Method    string
	Path      string
	Query     url.Values
	Body      string
	Timestamp time.Time
}

//
// RequestPath returns the path exactly as it appears on the wire (including the query string),
// which is what the exchange expects to have been signed.
//
func (o Descriptor) RequestPath() string {
	if len(o.Query) == 0 {
		return o.Path
	}

	return o.Path + "?" + o.Query.Encode()
}

//
// AuthHeaders holds the four authentication fields that accompany a signed request.
//
type AuthHeaders struct {
	Key        string
	Signature  string
	Timestamp  string
	Passphrase string
}

//
// Apply sets the authentication headers (and the JSON content type) on an outgoing request.
//
func (o AuthHeaders) Apply(header http.Header) {
	header.Set("Content-Type", "application/json")
	header.Set(AccessKeyHeader, o.Key)
	header.Set(AccessSignHeader, o.Signature)
	header.Set(AccessTimestampHeader, o.Timestamp)
	header.Set(AccessPassphraseHeader, o.Passphrase)
}

//
// Signer computes Coinbase Exchange authentication headers. It holds nothing but the decoded key
// material and is safe for concurrent use.
//
type Signer struct {
	key        string
	secret     []byte
	passphrase string
}

//
// NewSigner decodes the secret of the provided key set. It fails with an InvalidCredentialsError
// if any field is missing or if the secret is not valid base64.
//
func NewSigner(creds Credentials) (*Signer, error) {
	switch {
	case creds.key == "":
		return nil, &exchange.InvalidCredentialsError{Reason: "missing key"}
	case creds.secret == "":
		return nil, &exchange.InvalidCredentialsError{Reason: "missing secret"}
	case creds.passphrase == "":
		return nil, &exchange.InvalidCredentialsError{Reason: "missing passphrase"}
	}

	secret, err := base64.StdEncoding.DecodeString(creds.secret)
	if err != nil {
		return nil, &exchange.InvalidCredentialsError{Reason: "secret is not valid base64", Err: err}
	}

	return &Signer{
		key:        creds.key,
		secret:     secret,
		passphrase: creds.passphrase,
	}, nil
}

//
// Sign computes the authentication headers for the described request. The signature is the
// base64-encoded HMAC-SHA256 of timestamp + method + request path + body.
//
func (o *Signer) Sign(desc Descriptor) AuthHeaders {
	timestamp := FormatTimestamp(desc.Timestamp)
	message := timestamp + strings.ToUpper(desc.Method) + desc.RequestPath() + desc.Body

	mac := hmac.New(sha256.New, o.secret)
	mac.Write([]byte(message))

	return AuthHeaders{
		Key:        o.key,
		Signature:  base64.StdEncoding.EncodeToString(mac.Sum(nil)),
		Timestamp:  timestamp,
		Passphrase: o.passphrase,
	}
}

//
// SignFeed computes the authentication fields that accompany a subscribe request on the websocket
// feed.
//
func (o *Signer) SignFeed(timestamp time.Time) AuthHeaders {
	return o.Sign(Descriptor{
		Method:    http.MethodGet,
		Path:      VerifyPath,
		Timestamp: timestamp,
	})
}

//
// FormatTimestamp renders an instant as seconds since the epoch with millisecond precision.
//
func FormatTimestamp(t time.Time) string {
	return fmt.Sprintf("%d.%03d", t.Unix(), t.Nanosecond()/int(time.Millisecond))
}

package coinbase

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"testing"
	"time"

	"github.com/lukehollenback/neutrino/exchange"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testKey        = "test-key-0001"
	testSecret     = "bmV1dHJpbm8tdGVzdC1zZWNyZXQtMDEyMzQ1Njc4OQ=="
	testPassphrase = "test-passphrase"
)

var epoch = time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC)

func testSigner(t *testing.T) *Signer {
	t.Helper()

	signer, err := NewSigner(NewCredentials(testKey, testSecret, testPassphrase))
	require.NoError(t, err)

	return signer
}

func TestSignGoldenValues(t *testing.T) {
	signer := testSigner(t)

	cases := []struct {
		desc      Descriptor
		timestamp string
		signature string
	}{
		{
			desc: Descriptor{
				Method:    http.MethodGet,
				Path:      "/accounts/a1b2/ledger",
				Query:     url.Values{"limit": {"100"}},
				Timestamp: epoch,
			},
			timestamp: "1609459200.000",
			signature: "U1tJOm/V9FkjykQBczBr1IcoId/dBnjTQo4D41sUG4A=",
		},
		{
			desc: Descriptor{
				Method:    "post",
				Path:      "/orders",
				Body:      `{"size":"0.01"}`,
				Timestamp: epoch.Add(250 * time.Millisecond),
			},
			timestamp: "1609459200.250",
			signature: "f8+XNzdXkB2nqK4Ocv+S2KSFRdASs2DjT7wkKGYbReM=",
		},
	}

	for _, c := range cases {
		headers := signer.Sign(c.desc)

		assert.Equal(t, testKey, headers.Key)
		assert.Equal(t, testPassphrase, headers.Passphrase)
		assert.Equal(t, c.timestamp, headers.Timestamp)
		assert.Equal(t, c.signature, headers.Signature)
	}
}

func TestSignIsDeterministic(t *testing.T) {
	signer := testSigner(t)
	desc := Descriptor{Method: http.MethodGet, Path: FeesPath, Timestamp: epoch}

	first := signer.Sign(desc)

	for i := 0; i < 10; i++ {
		assert.Equal(t, first, signer.Sign(desc))
	}

	other := desc
	other.Timestamp = epoch.Add(time.Millisecond)
	assert.NotEqual(t, first.Signature, signer.Sign(other).Signature)
}

func TestSignFeed(t *testing.T) {
	headers := testSigner(t).SignFeed(epoch)

	assert.Equal(t, "D4M4pZr5RNumURhA4nbvK0JJxLeV91gDI6Jc7kCuGfg=", headers.Signature)
}

func TestApplyHeaders(t *testing.T) {
	header := http.Header{}

	testSigner(t).Sign(Descriptor{Method: http.MethodGet, Path: FeesPath, Timestamp: epoch}).Apply(header)

	assert.Equal(t, testKey, header.Get(AccessKeyHeader))
	assert.Equal(t, "1609459200.000", header.Get(AccessTimestampHeader))
	assert.Equal(t, testPassphrase, header.Get(AccessPassphraseHeader))
	assert.NotEmpty(t, header.Get(AccessSignHeader))
	assert.Equal(t, "application/json", header.Get("Content-Type"))
}

func TestNewSignerRejectsBadCredentials(t *testing.T) {
	cases := []Credentials{
		NewCredentials("", testSecret, testPassphrase),
		NewCredentials(testKey, "", testPassphrase),
		NewCredentials(testKey, testSecret, ""),
		NewCredentials(testKey, "not base64!", testPassphrase),
	}

	for _, c := range cases {
		_, err := NewSigner(c)

		var invalid *exchange.InvalidCredentialsError
		assert.True(t, errors.As(err, &invalid), "expected invalid credentials for %s", c)
	}
}

func TestCredentialsNeverRevealSecrets(t *testing.T) {
	creds := NewCredentials(testKey, testSecret, testPassphrase)

	for _, rendered := range []string{
		creds.String(),
		fmt.Sprintf("%v", creds),
		fmt.Sprintf("%+v", creds),
		fmt.Sprintf("%#v", creds),
	} {
		assert.NotContains(t, rendered, testSecret)
		assert.NotContains(t, rendered, testPassphrase)
		assert.NotContains(t, rendered, testKey)
	}

	_, err := json.Marshal(struct{ Creds Credentials }{creds})
	assert.Error(t, err)
}

package omise

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVerifySignature(t *testing.T) {
	payload := []byte(`{"object":"event","id":"evnt_1"}`)
	good := Sign(payload, "secret")

	cases := []struct {
		name   string
		secret string
		header string
		want   error
	}{
		{name: "valid", secret: "secret", header: good},
		{name: "rotated list", secret: "secret", header: "deadbeef, " + good},
		{name: "missing secret", secret: "", header: good, want: ErrSigningSecretMissing},
		{name: "missing header", secret: "secret", header: " ", want: ErrSignatureMissing},
		{name: "wrong secret", secret: "other", header: good, want: ErrSignatureMismatch},
		{name: "not hex", secret: "secret", header: "zz-not-hex", want: ErrSignatureMismatch},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := VerifySignature(payload, tc.secret, tc.header)
			if tc.want == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tc.want)
		})
	}
}

func TestVerifySignatureDetectsTamperedBody(t *testing.T) {
	sig := Sign([]byte(`{"status":"failed"}`), "secret")
	err := VerifySignature([]byte(`{"status":"successful"}`), "secret", sig)
	assert.ErrorIs(t, err, ErrSignatureMismatch)
}

func TestEventCharge(t *testing.T) {
	event := Event{
		Object: "event",
		ID:     "evnt_1",
		Key:    "charge.complete",
		Data:   []byte(`{"object":"charge","id":"chrg_1","status":"successful","source":{"object":"source","id":"src_1"}}`),
	}
	assert.Equal(t, "charge", event.DataObject())

	charge, err := event.Charge()
	require.NoError(t, err)
	assert.Equal(t, "chrg_1", charge.ID)
	require.NotNil(t, charge.Source)
	assert.Equal(t, "src_1", charge.Source.ID)
	assert.JSONEq(t, string(event.Data), string(charge.Raw))
}

func TestEventDataObjectNonCharge(t *testing.T) {
	event := Event{Data: []byte(`{"object":"refund","id":"rfnd_1"}`)}
	assert.Equal(t, "refund", event.DataObject())

	empty := Event{}
	assert.Equal(t, "", empty.DataObject())
	_, err := empty.Charge()
	assert.Error(t, err)
}

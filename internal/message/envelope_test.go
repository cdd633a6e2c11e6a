package message

import (
	"encoding/base64"
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/prodiguer/hermes/internal/enum"
	hermeserrors "github.com/prodiguer/hermes/internal/errors"
)

func validProperties() Properties {
	return Properties{
		MessageID:       uuid.NewString(),
		Type:            enum.MessageSimulationStart.String(),
		UserID:          enum.UserLibIGCM.String(),
		AppID:           enum.AppMonitoring.String(),
		ContentType:     enum.ContentTypeJSON.String(),
		ContentEncoding: enum.ContentEncodingUTF8.String(),
		Priority:        uint8(enum.PriorityNormal),
		DeliveryMode:    uint8(enum.DeliveryPersistent),
		Headers: map[string]string{
			HeaderProducerID:      enum.ProducerLibIGCM.String(),
			HeaderProducerVersion: "2.1",
		},
	}
}

func TestNew_Valid(t *testing.T) {
	props := validProperties()
	simulationUID := uuid.NewString()
	props.Headers[HeaderCorrelationPrefix+"1"] = simulationUID
	props.Headers[HeaderTimestamp] = "1431011515123456789"

	env, err := New(DefaultVocabulary(), props, []byte(`{"a":1}`))
	require.NoError(t, err)

	assert.Equal(t, enum.MessageSimulationStart, env.Type)
	assert.Equal(t, enum.ProducerLibIGCM, env.ProducerID)
	assert.Equal(t, "2.1", env.ProducerVersion)
	assert.Equal(t, []string{simulationUID}, env.CorrelationIDs)
	assert.Equal(t, enum.TimestampNanoseconds, env.Timestamp.Precision)
	assert.Equal(t, int64(1431011515123456789), env.Timestamp.Value.UnixNano())
	assert.Nil(t, env.Payload)
}

func TestNew_Rejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(p *Properties)
		field  string
	}{
		{"bad message id", func(p *Properties) { p.MessageID = "not-a-uuid" }, "message_id"},
		{"unknown type", func(p *Properties) { p.Type = "4242" }, "type"},
		{"unknown user", func(p *Properties) { p.UserID = "guest" }, "user_id"},
		{"unknown app", func(p *Properties) { p.AppID = "excel" }, "app_id"},
		{"unknown content type", func(p *Properties) { p.ContentType = "text/xml" }, "content_type"},
		{"unknown encoding", func(p *Properties) { p.ContentEncoding = "latin-1" }, "content_encoding"},
		{"bad delivery mode", func(p *Properties) { p.DeliveryMode = 3 }, "delivery_mode"},
		{"bad priority", func(p *Properties) { p.Priority = 5 }, "priority"},
		{"missing producer", func(p *Properties) { delete(p.Headers, HeaderProducerID) }, HeaderProducerID},
		{"missing producer version", func(p *Properties) { delete(p.Headers, HeaderProducerVersion) }, HeaderProducerVersion},
		{"malformed producer version", func(p *Properties) { p.Headers[HeaderProducerVersion] = "v2" }, HeaderProducerVersion},
		{"bad correlation id", func(p *Properties) { p.Headers["correlation_id_2"] = "xyz" }, "correlation_id_2"},
		{"bad timestamp", func(p *Properties) { p.Headers[HeaderTimestamp] = "yesterday" }, HeaderTimestamp},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			props := validProperties()
			tt.mutate(&props)

			env, err := New(DefaultVocabulary(), props, nil)
			require.Error(t, err)
			assert.Nil(t, env)

			var validationErr *hermeserrors.ValidationError
			require.ErrorAs(t, err, &validationErr)
			assert.Equal(t, tt.field, validationErr.Field)
		})
	}
}

func TestNew_CorrelationIDsKeepPosition(t *testing.T) {
	props := validProperties()
	jobUID := uuid.NewString()
	props.Headers["correlation_id_2"] = jobUID
	props.Headers["correlation_id_3"] = "4711"

	env, err := New(DefaultVocabulary(), props, nil)
	require.NoError(t, err)

	assert.Equal(t, "", env.CorrelationID(1))
	assert.Equal(t, jobUID, env.CorrelationID(2))
	assert.Equal(t, "4711", env.CorrelationID(3))
	assert.Equal(t, "", env.CorrelationID(4))

	out := env.Properties()
	assert.NotContains(t, out.Headers, "correlation_id_1")
	assert.Equal(t, jobUID, out.Headers["correlation_id_2"])
}

func TestDecode(t *testing.T) {
	vocab := DefaultVocabulary()

	t.Run("json", func(t *testing.T) {
		env, err := New(vocab, validProperties(), []byte(`{"simuid":"abc","count":3}`))
		require.NoError(t, err)
		require.NoError(t, env.Decode())

		payload := env.Payload.(map[string]interface{})
		assert.Equal(t, "abc", payload["simuid"])
		assert.Equal(t, json.Number("3"), payload["count"])
	})

	t.Run("json failure keeps raw content", func(t *testing.T) {
		env, err := New(vocab, validProperties(), []byte(`{"simuid":`))
		require.NoError(t, err)

		err = env.Decode()
		var decodeErr *hermeserrors.DecodeError
		require.ErrorAs(t, err, &decodeErr)
		assert.Equal(t, []byte(`{"simuid":`), decodeErr.Raw)
		assert.Nil(t, env.Payload)
	})

	t.Run("json with invalid utf-8", func(t *testing.T) {
		body := []byte("{\"simuid\":\"ab\xffc\"}")
		env, err := New(vocab, validProperties(), body)
		require.NoError(t, err)

		err = env.Decode()
		var decodeErr *hermeserrors.DecodeError
		require.ErrorAs(t, err, &decodeErr)
		assert.Equal(t, body, decodeErr.Raw)
		assert.Nil(t, env.Payload)
	})

	t.Run("base64+json with invalid utf-8", func(t *testing.T) {
		props := validProperties()
		props.ContentType = enum.ContentTypeBase64JSON.String()
		env, err := New(vocab, props, []byte(base64.StdEncoding.EncodeToString([]byte("{\"name\":\"\xc3\x28\"}"))))
		require.NoError(t, err)
		assert.True(t, hermeserrors.IsDecodeError(env.Decode()))
	})

	t.Run("base64", func(t *testing.T) {
		props := validProperties()
		props.ContentType = enum.ContentTypeBase64.String()
		env, err := New(vocab, props, []byte(base64.StdEncoding.EncodeToString([]byte("raw bytes"))))
		require.NoError(t, err)
		require.NoError(t, env.Decode())
		assert.Equal(t, []byte("raw bytes"), env.Payload)
	})

	t.Run("base64 failure", func(t *testing.T) {
		props := validProperties()
		props.ContentType = enum.ContentTypeBase64.String()
		env, err := New(vocab, props, []byte("!!not base64!!"))
		require.NoError(t, err)
		assert.True(t, hermeserrors.IsDecodeError(env.Decode()))
	})

	t.Run("base64+json with invalid json", func(t *testing.T) {
		props := validProperties()
		props.ContentType = enum.ContentTypeBase64JSON.String()
		env, err := New(vocab, props, []byte(base64.StdEncoding.EncodeToString([]byte("{oops"))))
		require.NoError(t, err)
		assert.True(t, hermeserrors.IsDecodeError(env.Decode()))
	})

	t.Run("idempotent", func(t *testing.T) {
		env, err := New(vocab, validProperties(), []byte(`{"a":[1,2]}`))
		require.NoError(t, err)
		require.NoError(t, env.Decode())
		first := env.Payload
		require.NoError(t, env.Decode())
		assert.Equal(t, first, env.Payload)
	})
}

func TestEncode_NonObjectIsNoop(t *testing.T) {
	env, err := New(DefaultVocabulary(), validProperties(), []byte(`[1,2,3]`))
	require.NoError(t, err)
	require.NoError(t, env.Decode())
	require.NoError(t, env.Encode())
	assert.Equal(t, []byte(`[1,2,3]`), env.Raw)
}

func TestUnmarshal(t *testing.T) {
	type alert struct {
		Trigger string `json:"trigger"`
	}
	props := validProperties()
	props.ContentType = enum.ContentTypeBase64JSON.String()
	env, err := New(DefaultVocabulary(), props, []byte(base64.StdEncoding.EncodeToString([]byte(`{"trigger":"smtp-checker-count"}`))))
	require.NoError(t, err)

	result, err := Unmarshal[alert](env)
	require.NoError(t, err)
	assert.Equal(t, "smtp-checker-count", result.Trigger)
}

func TestBuild(t *testing.T) {
	simulationUID := uuid.NewString()
	env, err := Build(DefaultVocabulary(), Outbound{
		Type:            enum.MessageFrontEndNotification,
		UserID:          enum.UserHermes,
		AppID:           enum.AppMonitoring,
		ProducerID:      enum.ProducerHermes,
		ProducerVersion: "1.0.0",
		CorrelationIDs:  []string{simulationUID},
		Payload:         map[string]interface{}{"event_type": "job_start"},
	})
	require.NoError(t, err)

	assert.NoError(t, uuid.Validate(env.MessageID))
	assert.Equal(t, simulationUID, env.CorrelationID(1))
	assert.Equal(t, enum.PriorityNormal, env.Priority)
	assert.Equal(t, enum.DeliveryPersistent, env.DeliveryMode)
	assert.JSONEq(t, `{"event_type":"job_start"}`, string(env.Raw))
}

func TestBuild_UnknownTypeFails(t *testing.T) {
	_, err := Build(DefaultVocabulary(), Outbound{
		Type:            "0042",
		UserID:          enum.UserHermes,
		AppID:           enum.AppHermes,
		ProducerID:      enum.ProducerHermes,
		ProducerVersion: "1",
	})
	assert.True(t, hermeserrors.IsValidationError(err))
}

func TestDecodeEncodeRoundTrip(t *testing.T) {
	vocab := DefaultVocabulary()
	rapid.Check(t, func(t *rapid.T) {
		object := map[string]interface{}{}
		for k, v := range rapid.MapOf(rapid.StringMatching(`[a-z_]{1,12}`), rapid.String()).Draw(t, "strings") {
			object[k] = v
		}
		for k, v := range rapid.MapOf(rapid.StringMatching(`[A-Z]{1,8}`), rapid.Int64()).Draw(t, "numbers") {
			object[k] = v
		}
		contentType := rapid.SampledFrom([]enum.ContentType{enum.ContentTypeJSON, enum.ContentTypeBase64JSON}).Draw(t, "contentType")

		raw, err := encode(contentType, object)
		require.NoError(t, err)

		props := validProperties()
		props.ContentType = contentType.String()
		env, err := New(vocab, props, raw)
		require.NoError(t, err)

		require.NoError(t, env.Decode())
		decoded := env.Payload
		require.NoError(t, env.Encode())
		require.NoError(t, env.Decode())

		assert.Equal(t, decoded, env.Payload)
	})
}

func TestUnregisteredTypeAlwaysRejected(t *testing.T) {
	vocab := DefaultVocabulary()
	rapid.Check(t, func(t *rapid.T) {
		messageType := rapid.StringMatching(`[0-9A-Za-z]{0,6}`).Filter(func(s string) bool {
			return !vocab.HasType(enum.MessageType(s))
		}).Draw(t, "type")

		props := validProperties()
		props.Type = messageType

		_, err := New(vocab, props, nil)
		assert.True(t, hermeserrors.IsValidationError(err))
	})
}

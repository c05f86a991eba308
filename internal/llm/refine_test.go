package llm

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fieldsheet/internal/schema"
)

func TestRefinerParsesProposedFields(t *testing.T) {
	tr := &scriptedTransport{fn: func(int) ([]byte, error) {
		return []byte(`{"fields":[
			{"name":"vendor","description":"vendor name","type":"string","required":true},
			{"name":"total","description":"grand total","type":"money","currency_hint":"USD"}
		]}`), nil
	}}
	inv := NewInvoker(tr, nil, RetryConfig{MaxAttempts: 1}, nil)

	reqs, err := NewInstructionRefiner(inv, nil).Refine(context.Background(), "vendor and total")
	require.NoError(t, err)
	require.Len(t, reqs, 2)
	assert.Equal(t, "vendor", reqs[0].Name)
	assert.Equal(t, schema.TypeMoney, reqs[1].Type)
	assert.Equal(t, "USD", reqs[1].CurrencyHint)
}

func TestRefinerRejectsMalformedProposal(t *testing.T) {
	tr := &scriptedTransport{fn: func(int) ([]byte, error) {
		return []byte(`{"fields":[{"name":"bad name!","type":"string"}]}`), nil
	}}
	inv := NewInvoker(tr, nil, RetryConfig{MaxAttempts: 1}, nil)

	_, err := NewInstructionRefiner(inv, nil).Refine(context.Background(), "whatever")
	assert.Error(t, err, "field names outside the safe pattern fail the response schema")
}

func TestRefinerPropagatesInvocationFailure(t *testing.T) {
	tr := &scriptedTransport{fn: func(int) ([]byte, error) {
		return nil, &TransportError{Provider: "fake", Status: 401}
	}}
	inv := NewInvoker(tr, nil, RetryConfig{MaxAttempts: 2, BaseDelay: time.Millisecond}, nil)

	_, err := NewInstructionRefiner(inv, nil).Refine(context.Background(), "whatever")
	assert.Error(t, err)
}

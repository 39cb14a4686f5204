package main

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/types/known/structpb"
)

func TestRenderOutcome_Completed(t *testing.T) {
	resp, err := structpb.NewStruct(map[string]interface{}{
		"status":               "COMPLETED",
		"session_id":           "session-1",
		"deposit_confirmation": "D-1",
		"requires_remediation": false,
	})
	require.NoError(t, err)

	out := renderOutcome(resp)

	lines := strings.Split(out, "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[0], "COMPLETED")
	assert.Contains(t, lines[1], "deposit_confirmation: D-1")
	assert.Contains(t, lines[2], "session_id: session-1")
	assert.NotContains(t, out, "remediation")
}

func TestRenderOutcome_Remediation(t *testing.T) {
	resp, err := structpb.NewStruct(map[string]interface{}{
		"status":               "UNRECOVERABLE_FAILURE",
		"reason":               "refund failed",
		"requires_remediation": true,
	})
	require.NoError(t, err)

	out := renderOutcome(resp)
	assert.Contains(t, out, "UNRECOVERABLE_FAILURE")
	assert.Contains(t, out, "Manual remediation required")
	assert.Contains(t, out, "reason: refund failed")
}

func TestRenderOutcome_Session(t *testing.T) {
	resp, err := structpb.NewStruct(map[string]interface{}{
		"session_id": "session-1",
		"withdraw":   true,
		"deposit":    false,
		"transfer": map[string]interface{}{
			"amount":       "250.00",
			"reference_id": "12345",
		},
	})
	require.NoError(t, err)

	out := renderOutcome(resp)
	assert.Contains(t, out, "withdraw: yes")
	assert.Contains(t, out, "deposit: no")
	assert.Contains(t, out, "    amount: 250.00")
	assert.NotContains(t, out, "Transfer ")
}

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestOrderPolicyDefaultsToReadyOnly(t *testing.T) {
	holder, err := newOrderPolicyHolder(zap.NewNop(), t.TempDir())
	require.NoError(t, err)

	policy := holder.Get()
	assert.Equal(t, []string{PolicyStatusReady}, policy.AutoCompleteFrom)
	assert.True(t, policy.AutoCompletes("READY"))
	assert.False(t, policy.AutoCompletes("PREPARING"))
	assert.False(t, policy.AutoCompletes("NEW"))
}

func TestOrderPolicyLoadsFromFile(t *testing.T) {
	dir := t.TempDir()
	content := "order:\n  autoCompleteFrom:\n    - ready\n    - PREPARING\n    - READY\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "policy.yml"), []byte(content), 0o600))

	holder, err := newOrderPolicyHolder(zap.NewNop(), dir)
	require.NoError(t, err)

	policy := holder.Get()
	assert.Equal(t, []string{PolicyStatusReady, PolicyStatusPreparing}, policy.AutoCompleteFrom)
	assert.True(t, policy.AutoCompletes("preparing"))
}

func TestOrderPolicyRejectsUnknownStatus(t *testing.T) {
	dir := t.TempDir()
	content := "order:\n  autoCompleteFrom:\n    - NEW\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "policy.yml"), []byte(content), 0o600))

	_, err := newOrderPolicyHolder(zap.NewNop(), dir)
	require.Error(t, err)
}

func TestStaticOrderPolicyHolder(t *testing.T) {
	holder := NewStaticOrderPolicyHolder(OrderPolicy{AutoCompleteFrom: []string{" preparing ", "ready"}})
	assert.Equal(t, []string{PolicyStatusPreparing, PolicyStatusReady}, holder.Get().AutoCompleteFrom)

	var nilHolder *OrderPolicyHolder
	assert.Equal(t, DefaultOrderPolicy(), nilHolder.Get())
}

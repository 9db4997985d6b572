package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/dorm-seat-reservation/internal/config"
)

func TestAdminWarnings(t *testing.T) {
	w := adminWarnings(config.Config{AdminNames: []string{"warden"}})
	require.Len(t, w, 1)
	assert.Contains(t, w[0], "ADMIN_SECRET")

	w = adminWarnings(config.Config{AdminSecret: "s3cret"})
	require.Len(t, w, 1)
	assert.Contains(t, w[0], "ADMIN_NAMES")

	assert.Empty(t, adminWarnings(config.Config{AdminSecret: "s3cret", AdminNames: []string{"warden"}}))
}

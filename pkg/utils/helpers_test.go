package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestParseDuration(t *testing.T) {
	assert.Equal(t, 90*time.Second, ParseDuration("90s", time.Minute))
	assert.Equal(t, time.Minute, ParseDuration("", time.Minute))
	assert.Equal(t, time.Minute, ParseDuration("soon", time.Minute))
	assert.Equal(t, time.Minute, ParseDuration("-5s", time.Minute))
}

func TestBaseName(t *testing.T) {
	assert.Equal(t, "sales.csv", BaseName("sales.csv"))
	assert.Equal(t, "sales.csv", BaseName("/tmp/in/sales.csv"))
	assert.Equal(t, "sales.xlsx", BaseName(`C:\Users\me\sales.xlsx`))
	assert.Equal(t, "dir", BaseName("a/dir/"))
	assert.Equal(t, "", BaseName(""))
}

package database

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateConfig(t *testing.T) {
	valid := DatabaseConfig{Host: "localhost", Port: "5432", User: "hermes", Password: "secret", DBName: "prodiguer"}
	assert.NoError(t, validateConfig(&valid))
	assert.Error(t, validateConfig(nil))

	missingHost := valid
	missingHost.Host = ""
	assert.EqualError(t, validateConfig(&missingHost), "database host config is empty")

	missingName := valid
	missingName.DBName = ""
	assert.Error(t, validateConfig(&missingName))
}

func TestNewConnection_InvalidPort(t *testing.T) {
	_, err := NewConnection(&DatabaseConfig{Host: "localhost", Port: "fivefour", User: "u", Password: "p", DBName: "d"})
	assert.ErrorContains(t, err, "invalid port number")
}

func TestValueOrDefault(t *testing.T) {
	assert.Equal(t, 10, valueOrDefault(0, 10))
	assert.Equal(t, 3, valueOrDefault(3, 10))
}

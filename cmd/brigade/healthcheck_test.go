package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestReadyURL(t *testing.T) {
	assert.Equal(t, "http://localhost:8080/ready", readyURL(":8080"))
	assert.Equal(t, "http://10.0.0.5:9000/ready", readyURL("10.0.0.5:9000"))
}

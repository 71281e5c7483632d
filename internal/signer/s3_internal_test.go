package signer

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSignSHA1_KnownVector(t *testing.T) {
	t.Parallel()

	stringToSign := "GET\n\n\nTue, 27 Mar 2007 19:36:42 +0000\n/johnsmith/photos/puppy.jpg"

	assert.Equal(t, "bWq2s1WEIj+Ydj0vQ697zp+IXMU=",
		signSHA1("wJalrXUtnFEMI/K7MDENG/bPxRfiCYEXAMPLEKEY", stringToSign))
}

package patpmt

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestVerifyCRC32_AcceptsKnownGoodSection(t *testing.T) {
	section, err := extractSection(patPayload, tableIDPAT)
	assert := assert.New(t)
	assert.NoError(err)
	assert.NoError(verifyCRC32(section))
}

func TestVerifyCRC32_RejectsCorruptedSection(t *testing.T) {
	section, _ := extractSection(patPayload, tableIDPAT)
	corrupted := append([]byte(nil), section...)
	corrupted[len(corrupted)-1] ^= 0x01
	assert.Error(t, verifyCRC32(corrupted))
}

func TestVerifyCRC32_TooShort(t *testing.T) {
	assert.Error(t, verifyCRC32([]byte{0x01, 0x02}))
}

package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateSlug_AcceptsWellFormed(t *testing.T) {
	assert.NoError(t, ValidateSlug("acme"))
	assert.NoError(t, ValidateSlug("acme-labs-2"))
}

func TestValidateSlug_RejectsTooShort(t *testing.T) {
	assert.ErrorIs(t, ValidateSlug("ab"), ErrInvalidSlug)
}

func TestValidateSlug_RejectsTooLong(t *testing.T) {
	long := ""
	for i := 0; i < slugMaxLen+1; i++ {
		long += "a"
	}
	assert.ErrorIs(t, ValidateSlug(long), ErrInvalidSlug)
}

func TestValidateSlug_RejectsUppercase(t *testing.T) {
	assert.ErrorIs(t, ValidateSlug("Acme"), ErrInvalidSlug)
}

func TestValidateSlug_RejectsInvalidCharset(t *testing.T) {
	assert.ErrorIs(t, ValidateSlug("acme_labs"), ErrInvalidSlug)
	assert.ErrorIs(t, ValidateSlug("acme.labs"), ErrInvalidSlug)
}

func TestValidateSlug_RejectsReservedNames(t *testing.T) {
	assert.ErrorIs(t, ValidateSlug("admin"), ErrReservedSlug)
	assert.ErrorIs(t, ValidateSlug("www"), ErrReservedSlug)
}

package apperr

import (
	"errors"
	"io/fs"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindsSurviveWrapping(t *testing.T) {
	err := IO("read source", fs.ErrNotExist)
	assert.ErrorIs(t, err, ErrIO)
	assert.ErrorIs(t, err, fs.ErrNotExist)

	assert.ErrorIs(t, Decode("image", errors.New("bad header")), ErrDecode)
	assert.ErrorIs(t, NotFound("asset %s", "x"), ErrNotFound)
	assert.ErrorIs(t, Invalid("rows must be positive"), ErrInvalidInput)
}

func TestProviderDoesNotDoubleWrap(t *testing.T) {
	inner := Provider("embed", errors.New("timeout"))
	outer := Provider("tag asset", inner)
	assert.Equal(t, inner.Error(), outer.Error())
	assert.ErrorIs(t, Provider("no provider configured", nil), ErrProvider)
}

func TestHTTPStatus(t *testing.T) {
	assert.Equal(t, http.StatusNotFound, HTTPStatus(NotFound("library")))
	assert.Equal(t, http.StatusBadRequest, HTTPStatus(Invalid("name")))
	assert.Equal(t, http.StatusUnprocessableEntity, HTTPStatus(Decode("x", errors.New("y"))))
	assert.Equal(t, http.StatusBadGateway, HTTPStatus(Provider("x", nil)))
	assert.Equal(t, http.StatusInternalServerError, HTTPStatus(errors.New("boom")))
}

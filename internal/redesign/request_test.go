package redesign

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateAcceptsVocabularyCaseInsensitively(t *testing.T) {
	req := Request{SourceImageURL: " https://uploads.test/a.jpg ", RoomType: "DINING room", DesignStyle: "minimalist"}
	assert.NoError(t, req.Validate())

	req.SourceImageURL = "data:image/png;base64,AAAA"
	assert.NoError(t, req.Validate())
}

func TestValidateReportsEveryField(t *testing.T) {
	err := Request{SourceImageURL: "ftp://host/a.jpg", RoomType: "   ", DesignStyle: "Baroque"}.Validate()
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)

	assert.ElementsMatch(t, []FieldError{
		{Field: "imageUrl", Rule: "imagelocator"},
		{Field: "roomType", Rule: "required"},
		{Field: "designType", Rule: "designstyle"},
	}, verr.Fields)
	assert.Equal(t, "missing required fields: roomType; invalid fields: imageUrl, designType", verr.Error())
}

func TestIsGuest(t *testing.T) {
	assert.True(t, Request{}.IsGuest())
	assert.True(t, Request{RequesterIdentity: " Guest "}.IsGuest())
	assert.False(t, Request{RequesterIdentity: "ada@example.com"}.IsGuest())
}

package services

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate_UsesJSONNamesAndCustomMessages(t *testing.T) {
	err := Validate(CreateRequestInput{CourseID: " ", Type: "Video", Title: ""})
	svcErr, ok := AsServiceError(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusBadRequest, svcErr.Status)
	assert.Equal(t, "this field cannot be blank", svcErr.Fields["courseId"])
	assert.Equal(t, "this field cannot be blank", svcErr.Fields["title"])
	assert.Equal(t, "must be one of Slides, Homeworks, Past Papers, Notes", svcErr.Fields["type"])
}

func TestValidate_BuiltinTranslations(t *testing.T) {
	err := Validate(RegisterInput{Email: "nope", Password: "short", DisplayName: "x"})
	svcErr, ok := AsServiceError(err)
	require.True(t, ok)
	assert.Equal(t, "email must be a valid email address", svcErr.Fields["email"])
	assert.Equal(t, "password must be at least 8 characters in length", svcErr.Fields["password"])
}

func TestValidate_OK(t *testing.T) {
	assert.NoError(t, Validate(SetRoleInput{Role: "MODERATOR"}))
	assert.NoError(t, Validate(CreateRequestInput{CourseID: "cs101", Type: "Past Papers", Title: "Exam"}))
}

package external

import (
	"encoding/json"
	"strings"

	"github.com/go-playground/validator/v10"

	"wardalert/internal/types"
)

// DefaultTokenURL is the Google OAuth2 token endpoint used when the
// credential does not name one.
const DefaultTokenURL = "https://oauth2.googleapis.com/token"

// DefaultScope grants access to the push-messaging API.
const DefaultScope = "https://www.googleapis.com/auth/cloud-platform"

const (
	pemBeginMarker = "-----BEGIN"
	pemEndMarker   = "-----END"
)

var credentialValidator = validator.New()

// ParseServiceAccount decodes and validates the service-account JSON blob.
// It runs once at cold start; any missing field fails startup with a
// credential_invalid error instead of surfacing later as a signing failure.
func ParseServiceAccount(raw []byte) (*types.ServiceAccountCredential, error) {
	var cred types.ServiceAccountCredential
	if err := json.Unmarshal(raw, &cred); err != nil {
		return nil, types.NewAppError(types.ErrCodeCredentialInvalid, "service account is not valid JSON", err)
	}

	cred.PrivateKey = types.SecretString(NormalizePrivateKey(cred.PrivateKey.Unmask()))
	if cred.TokenURI == "" {
		cred.TokenURI = DefaultTokenURL
	}

	if err := credentialValidator.Struct(cred); err != nil {
		return nil, types.NewAppErrorWithDetails(
			types.ErrCodeCredentialInvalid,
			"service account is missing required fields",
			err,
			map[string]any{"missing": missingFields(err)},
		)
	}

	if !hasPEMMarkers(cred.PrivateKey.Unmask()) {
		return nil, types.NewAppError(types.ErrCodeCredentialInvalid, "private key is not PEM encoded", nil)
	}

	return &cred, nil
}

// NormalizePrivateKey turns literal "\n" escape sequences, common when the
// key travels through an environment variable, into real newlines.
func NormalizePrivateKey(key string) string {
	return strings.ReplaceAll(key, `\n`, "\n")
}

func hasPEMMarkers(key string) bool {
	begin := strings.Index(key, pemBeginMarker)
	end := strings.LastIndex(key, pemEndMarker)
	return begin >= 0 && end > begin
}

// missingFields lists the JSON names of fields that failed validation.
func missingFields(err error) []string {
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return nil
	}
	names := map[string]string{
		"ProjectID":   "project_id",
		"ClientEmail": "client_email",
		"PrivateKey":  "private_key",
		"TokenURI":    "token_uri",
	}
	out := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		if n, ok := names[fe.Field()]; ok {
			out = append(out, n)
		} else {
			out = append(out, fe.Field())
		}
	}
	return out
}

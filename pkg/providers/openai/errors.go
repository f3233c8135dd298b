package openai

import (
	"context"
	"encoding/json"
	"errors"

	goopenai "github.com/sashabaranov/go-openai"

	"mercator-hq/parley/pkg/providers"
)

// mapError translates SDK errors into the provider error taxonomy.
func mapError(ctx context.Context, name providers.Name, err error) error {
	var apiErr *goopenai.APIError
	if errors.As(err, &apiErr) && apiErr.HTTPStatusCode > 0 {
		perr := providers.StatusError(name, apiErr.HTTPStatusCode, apiErr.Message, 0)
		perr.Cause = err
		return perr
	}

	var reqErr *goopenai.RequestError
	if errors.As(err, &reqErr) && reqErr.HTTPStatusCode > 0 {
		perr := providers.StatusError(name, reqErr.HTTPStatusCode, string(reqErr.Body), 0)
		perr.Cause = err
		return perr
	}

	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) || errors.Is(err, goopenai.ErrTooManyEmptyStreamMessages) {
		return providers.MalformedError(name, "", err)
	}

	return providers.RequestError(ctx, name, err)
}

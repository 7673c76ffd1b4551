package pipeline

import "github.com/rotisserie/eris"

// ErrValidation marks rejected submissions. Handlers map it to a 400.
var ErrValidation = eris.New("pipeline: validation failed")

package model

import "github.com/m-mizutani/goerr/v2"

// Error taxonomy of the pipeline. The HTTP boundary maps each tag to a status code.
var (
	TagValidation = goerr.NewTag("validation")
	TagUpstream   = goerr.NewTag("upstream")
	TagStore      = goerr.NewTag("store")
	TagSynthesis  = goerr.NewTag("synthesis")
)

var (
	ErrDocumentNotFound = goerr.New("document not found")
)

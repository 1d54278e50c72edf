package lsp

type LSPAny = any

// See https://microsoft.github.io/language-server-protocol/specifications/lsp/3.17/specification#executeCommandParams
type ExecuteCommandParams struct {
	WorkDoneProgressParams
	Command   string   `json:"command"`
	Arguments []LSPAny `json:"arguments,omitempty"`
}

type WorkDoneProgressParams struct {
	WorkDoneToken ProgressToken `json:"workDoneToken,omitempty"`
}

type ExecuteCommandOptions struct {
	Commands []string `json:"commands"`
}

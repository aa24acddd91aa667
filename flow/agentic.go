package flow

// SendOn controls which phases an email notification fires in
type SendOn string

const (
	SendOnBefore SendOn = "before"
	SendOnAfter  SendOn = "after"
	SendOnBoth   SendOn = "both"
	SendOnError  SendOn = "error"
)

// RecipientType determines how a recipient value is resolved to an address
type RecipientType string

const (
	// RecipientUser resolves the value as a user id via the contact directory
	RecipientUser RecipientType = "user"
	// RecipientVendor resolves the value as a vendor id via the contact directory
	RecipientVendor RecipientType = "vendor"
	// RecipientCustom uses the resolved value as a literal address
	RecipientCustom RecipientType = "custom"
)

// Recipient is one email destination
type Recipient struct {
	Type RecipientType `json:"type" yaml:"type"`
	// Value is an id or literal address template, resolved at dispatch time
	Value string `json:"value" yaml:"value"`
}

// EmailConfig configures node email notifications
type EmailConfig struct {
	SendOn     SendOn      `json:"send_on" yaml:"send_on"`
	Recipients []Recipient `json:"recipients" yaml:"recipients"`
	Subject    string      `json:"subject" yaml:"subject"`
	Body       string      `json:"body" yaml:"body"`
	// IncludeResult appends the node's serialized output to the body
	IncludeResult bool `json:"include_result,omitempty" yaml:"include_result,omitempty"`
}

// TargetType identifies a push transport
type TargetType string

const (
	TargetWebhook  TargetType = "webhook"
	TargetMCP      TargetType = "mcp"
	TargetDatabase TargetType = "database"
	TargetAPI      TargetType = "api"
)

// Target is one outbound push destination
type Target struct {
	Type TargetType `json:"type" yaml:"type"`
	// Endpoint is the destination URL (webhook/api targets)
	Endpoint string `json:"endpoint,omitempty" yaml:"endpoint,omitempty"`
	// ConnectionID names a managed connection (mcp/database targets)
	ConnectionID string `json:"connection_id,omitempty" yaml:"connection_id,omitempty"`
	// Method is the transport method (default POST for HTTP targets)
	Method string `json:"method,omitempty" yaml:"method,omitempty"`
	// DataMapping maps target field names to result/context templates
	DataMapping map[string]string `json:"data_mapping,omitempty" yaml:"data_mapping,omitempty"`
}

// PushDataConfig configures outbound data pushes for a node
type PushDataConfig struct {
	Targets []Target `json:"targets" yaml:"targets"`
}

// SourceType identifies a collect transport
type SourceType string

const (
	SourceAPI      SourceType = "api"
	SourceDatabase SourceType = "database"
	SourceMCP      SourceType = "mcp"
	SourceRAG      SourceType = "rag"
	SourceFile     SourceType = "file"
)

// MergeStrategy is the policy for combining fetched data into the
// execution context
type MergeStrategy string

const (
	// MergeReplace fully overwrites the existing context key
	MergeReplace MergeStrategy = "replace"
	// MergeDeep deep-merges maps, fetched values win at the leaf level
	MergeDeep MergeStrategy = "merge"
	// MergeAppend concatenates onto an existing sequence, or creates a
	// single-element sequence when the key is absent
	MergeAppend MergeStrategy = "append"
)

// Source is one inbound data source
type Source struct {
	Type SourceType `json:"type" yaml:"type"`
	// Endpoint is the source URL (api sources)
	Endpoint string `json:"endpoint,omitempty" yaml:"endpoint,omitempty"`
	// ConnectionID names a managed connection (mcp/database/rag sources)
	ConnectionID string `json:"connection_id,omitempty" yaml:"connection_id,omitempty"`
	// Query is the source-specific query or path
	Query string `json:"query,omitempty" yaml:"query,omitempty"`
	// Key is the context key the fetched data merges into
	Key           string        `json:"key,omitempty" yaml:"key,omitempty"`
	MergeStrategy MergeStrategy `json:"merge_strategy,omitempty" yaml:"merge_strategy,omitempty"`
}

// CollectDataConfig configures inbound data collection for a node
type CollectDataConfig struct {
	Sources []Source `json:"sources" yaml:"sources"`
}

// AgenticConfig is the set of integration actions attached to a node.
// All three sub-configs are independent and optional.
type AgenticConfig struct {
	Email       *EmailConfig       `json:"email,omitempty" yaml:"email,omitempty"`
	PushData    *PushDataConfig    `json:"push_data,omitempty" yaml:"push_data,omitempty"`
	CollectData *CollectDataConfig `json:"collect_data,omitempty" yaml:"collect_data,omitempty"`
}

// sendsIn reports whether the email config fires in the given phase
func (c *EmailConfig) sendsIn(phase ActionPhase) bool {
	switch phase {
	case PhaseBefore:
		return c.SendOn == SendOnBefore || c.SendOn == SendOnBoth
	case PhaseAfter:
		return c.SendOn == SendOnAfter || c.SendOn == SendOnBoth
	case PhaseError:
		return c.SendOn == SendOnError
	}
	return false
}

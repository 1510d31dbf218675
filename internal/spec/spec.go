// Package spec holds the pre-execution, JSON-serializable description of a
// flow: the shapes a user (or a client library) submits before the builder
// turns them into a plan. Shaped like resolved_table.go's resolvedLine
// JSON, generalized into a full flow-spec grammar: sources, transforms,
// collectors, exports, and a direct output.
package spec

import "encoding/json"

// FieldName is a field identifier as it appears in a flow spec, distinct
// from ident.Ident (which names tracking-store/target objects).
type FieldName string

// AuthEntryReference is an opaque key into the auth registry, phantom-typed
// by the payload type T it is expected to resolve to. T never appears at
// runtime; it exists so callers can't pass an OpenAI key reference where a
// Postgres DSN reference is expected.
type AuthEntryReference[T any] struct {
	Key string `json:"key"`
}

// NewAuthEntryReference builds a reference to a named auth entry.
func NewAuthEntryReference[T any](key string) AuthEntryReference[T] {
	return AuthEntryReference[T]{Key: key}
}

// VectorSimilarityMetric enumerates the distance functions a vector index
// target may be configured with.
type VectorSimilarityMetric int

const (
	CosineSimilarity VectorSimilarityMetric = iota
	L2Distance
	InnerProduct
)

func (m VectorSimilarityMetric) String() string {
	switch m {
	case L2Distance:
		return "L2Distance"
	case InnerProduct:
		return "InnerProduct"
	default:
		return "CosineSimilarity"
	}
}

func (m VectorSimilarityMetric) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.String())
}

func (m *VectorSimilarityMetric) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	switch s {
	case "L2Distance":
		*m = L2Distance
	case "InnerProduct":
		*m = InnerProduct
	default:
		*m = CosineSimilarity
	}
	return nil
}

// FieldRef names a value reachable in the flow graph being built: either a
// direct input, a transform's output, or a path into one via dotted field
// access, resolved into an AnalyzedFieldReference at plan-build time.
type FieldRef struct {
	Node string   `json:"node"`
	Path []string `json:"path,omitempty"`
}

// ArgBinding binds one operator argument (by position, when Name is empty,
// or by name) to a FieldRef.
type ArgBinding struct {
	Ref  FieldRef `json:"ref"`
	Name string   `json:"arg_name,omitempty"`
}

// TransformSpec is one node of the declarative flow graph: an invocation of
// an operator registered under Kind, with Spec as its operator-specific
// configuration payload.
type TransformSpec struct {
	Name   string            `json:"name"`
	Kind   string            `json:"kind"`
	Spec   json.RawMessage   `json:"spec"`
	Inputs []ArgBinding      `json:"inputs"`
	Scope  string            `json:"scope,omitempty"`
}

// CollectorSpec names a table-valued accumulator within a scope.
type CollectorSpec struct {
	Name  string `json:"name"`
	Scope string `json:"scope,omitempty"`
}

// ExportSpec binds a collector to a target kind with target-specific
// configuration.
type ExportSpec struct {
	Name      string          `json:"name"`
	Collector string          `json:"collector"`
	Kind      string          `json:"kind"`
	Spec      json.RawMessage `json:"spec"`
}

// DirectInputSpec declares one named, typed input slot of the flow.
type DirectInputSpec struct {
	Name string `json:"name"`
}

// FlowSpec is the declarative, JSON-serializable form of a whole flow:
// {name, sources, transforms, collectors, exports, output}.
type FlowSpec struct {
	Name        string            `json:"name"`
	Sources     []TransformSpec   `json:"sources"`
	Transforms  []TransformSpec   `json:"transforms"`
	Collectors  []CollectorSpec   `json:"collectors"`
	Exports     []ExportSpec      `json:"exports"`
	Output      *FieldRef         `json:"output,omitempty"`
	DirectInputs []DirectInputSpec `json:"direct_inputs,omitempty"`
}

// LlmApiType enumerates the LLM providers a structured-extraction function
// operator may target. The core treats this as an opaque discriminator; it
// never dials out itself (LLM clients are an out-of-scope collaborator)
// and carries the enum only as a spec-level value.
type LlmApiType int

const (
	LlmOllama LlmApiType = iota
	LlmOpenAi
	LlmGemini
	LlmAnthropic
	LlmLiteLlm
	LlmOpenRouter
	LlmVoyage
	LlmVllm
	LlmVertexAi
	LlmBedrock
	LlmAzureOpenAi
)

func (t LlmApiType) String() string {
	switch t {
	case LlmOpenAi:
		return "OpenAi"
	case LlmGemini:
		return "Gemini"
	case LlmAnthropic:
		return "Anthropic"
	case LlmLiteLlm:
		return "LiteLlm"
	case LlmOpenRouter:
		return "OpenRouter"
	case LlmVoyage:
		return "Voyage"
	case LlmVllm:
		return "Vllm"
	case LlmVertexAi:
		return "VertexAi"
	case LlmBedrock:
		return "Bedrock"
	case LlmAzureOpenAi:
		return "AzureOpenAi"
	default:
		return "Ollama"
	}
}

package observability

const (
	AttrAgentName       = "agent.name"
	AttrToolName        = "tool.name"
	AttrWorkflowName    = "workflow.name"
	AttrLLMModel        = "llm.model"
	AttrLLMTokensInput  = "llm.tokens.input"
	AttrLLMTokensOutput = "llm.tokens.output"
	AttrInputContent    = "input.content"
	AttrOutputContent   = "output.content"

	SpanAgentRun      = "agent.run"
	SpanLLMRequest    = "agent.llm_request"
	SpanToolExecution = "agent.tool_execution"
	SpanWorkflowTurn  = "workflow.turn"

	DefaultServiceName  = "relay"
	DefaultOTLPEndpoint = "localhost:4317"
	DefaultSamplingRate = 1.0
)

package devtools

import "github.com/aretw0/arbor/pkg/domain"

// Wire message types understood by the debugger.
const (
	MsgPing                   = "ping"
	MsgPong                   = "pong"
	MsgInit                   = "init"
	MsgExecutionStart         = "executionStart"
	MsgExecutionEnd           = "executionEnd"
	MsgExecutionPathStart     = "executionPathStart"
	MsgExecutionFunctionStart = "executionFunctionStart"
	MsgExecutionFunctionEnd   = "executionFunctionEnd"
	MsgExecutionFunctionError = "executionFunctionError"
	MsgExecution              = "execution"
)

// Message is the envelope exchanged with the debugger.
type Message struct {
	Type    string `json:"type"`
	Source  string `json:"source,omitempty"`
	Version string `json:"version,omitempty"`
	Data    any    `json:"data,omitempty"`
}

type executionData struct {
	Execution map[string]any `json:"execution"`
}

// translate maps an engine event onto the debugger's message. It reports false
// for events the debugger has no use for, such as functionEnd without output.
func translate(ev domain.Event) (Message, bool) {
	exec := map[string]any{"executionId": ev.ExecutionID}
	if i, ok := ev.Index(); ok {
		exec["functionIndex"] = i
	}

	var kind string
	switch ev.Type {
	case domain.EventExecutionStart:
		kind = MsgExecutionStart
		info, _ := ev.Data[domain.DataExecution].(domain.ExecutionInfo)
		exec["name"] = info.Name
		exec["staticTree"] = info.StaticTree
		exec["datetime"] = info.Datetime.UnixMilli()
		if info.ExecutedBy != "" {
			exec["executedBy"] = info.ExecutedBy
		} else {
			exec["executedBy"] = nil
		}

	case domain.EventExecutionEnd:
		kind = MsgExecutionEnd

	case domain.EventPathStart:
		kind = MsgExecutionPathStart
		exec["path"] = ev.Data[domain.DataPath]

	case domain.EventFunctionStart:
		kind = MsgExecutionFunctionStart
		exec["payload"] = ev.Data[domain.DataPayload]
		exec["data"] = nil

	case domain.EventFunctionEnd:
		output := ev.Data[domain.DataOutput]
		if isEmptyOutput(output) {
			return Message{}, false
		}
		kind = MsgExecutionFunctionEnd
		exec["output"] = output

	case domain.EventFunctionError:
		kind = MsgExecutionFunctionError
		info, _ := ev.Data[domain.DataError].(map[string]any)
		exec["error"] = map[string]any{
			"name":    info["kind"],
			"message": info["message"],
			"func":    ev.Data[domain.DataName],
		}

	case domain.EventExecutionData:
		kind = MsgExecution
		exec["payload"] = ev.Data[domain.DataPayload]
		exec["datetime"] = ev.Timestamp.UnixMilli()
		exec["data"] = ev.Data[domain.DataDebug]

	default:
		return Message{}, false
	}

	return Message{
		Type:    kind,
		Source:  ev.Source,
		Version: ev.Version,
		Data:    executionData{Execution: exec},
	}, true
}

func isEmptyOutput(v any) bool {
	switch out := v.(type) {
	case nil:
		return true
	case domain.Payload:
		return out == nil
	case map[string]any:
		return out == nil
	}
	return false
}

func initMessage(source, version string) Message {
	return Message{Type: MsgInit, Source: source, Version: version}
}

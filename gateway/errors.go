package gateway

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrUnavailable 重试耗尽后返回；调用方收到空结果，不应再次播报。
	ErrUnavailable = errors.New("broker unavailable after retries")
	// ErrAlreadyFinal 撤单/改单时订单已终态；按约定静默返回。
	ErrAlreadyFinal = errors.New("order already in a finalized state")
)

// FaultError 券商返回的结构化业务错误（非网络问题，不重试）。
type FaultError struct {
	Code int
	Text string
}

func (e *FaultError) Error() string {
	return fmt.Sprintf("broker fault (HTTP %d): %s", e.Code, e.Text)
}

// faultPayload 结构化错误体：{"fault":{"faultstring":"..."}} 或 {"errors":{"error":["..."]}}。
type faultPayload struct {
	Fault struct {
		FaultString string `json:"faultstring"`
	} `json:"fault"`
	Errors struct {
		Error []string `json:"error"`
	} `json:"errors"`
}

// parseFault 从响应体里提取券商错误文本；解析失败时返回原始文本。
func parseFault(body []byte) string {
	var p faultPayload
	if err := json.Unmarshal(body, &p); err == nil {
		if p.Fault.FaultString != "" {
			return p.Fault.FaultString
		}
		if len(p.Errors.Error) > 0 {
			return strings.Join(p.Errors.Error, "; ")
		}
	}
	return strings.TrimSpace(string(body))
}

// alreadyFinalized 识别"订单已终态"类错误文本，用于撤单/改单的静默路径。
func alreadyFinalized(text string) bool {
	t := strings.ToLower(text)
	return strings.Contains(t, "already in a finalized state") ||
		strings.Contains(t, "already been filled") ||
		strings.Contains(t, "already been canceled")
}

// transientStatus 5xx 视为瞬时故障，可重试。
func transientStatus(code int) bool { return code >= 500 }

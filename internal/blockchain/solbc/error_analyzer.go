package solbc

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/gagliardetto/solana-go/rpc/jsonrpc"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/pump-meteora/internal/blockchain"
)

// AnchorError represents an error from Anchor framework
type AnchorError struct {
	Code int    `json:"code"`
	Name string `json:"name"`
	Msg  string `json:"msg"`
}

var customErrorPattern = regexp.MustCompile(`custom program error: 0x([0-9a-fA-F]+)`)

// ErrorAnalyzer provides methods to analyze Solana transaction errors
type ErrorAnalyzer struct {
	logger *zap.Logger
}

// NewErrorAnalyzer creates a new ErrorAnalyzer instance
func NewErrorAnalyzer(logger *zap.Logger) *ErrorAnalyzer {
	return &ErrorAnalyzer{
		logger: logger.Named("error-analyzer"),
	}
}

// AnalyzeRPCError analyzes a jsonrpc.RPCError and extracts detailed information
func (ea *ErrorAnalyzer) AnalyzeRPCError(err error) map[string]interface{} {
	if err == nil {
		return map[string]interface{}{
			"error": "No error provided",
		}
	}

	rpcErr, ok := err.(*jsonrpc.RPCError)
	if !ok {
		return map[string]interface{}{
			"type":    "generic_error",
			"message": err.Error(),
		}
	}

	result := map[string]interface{}{
		"type":    "rpc_error",
		"code":    rpcErr.Code,
		"message": rpcErr.Message,
	}

	if strings.Contains(rpcErr.Message, "Transaction simulation failed") {
		result["simulation_failed"] = true

		if dataMap, ok := rpcErr.Data.(map[string]interface{}); ok {
			if logs, ok := dataMap["logs"].([]interface{}); ok {
				result["logs"] = logs
				lines := make([]string, 0, len(logs))
				for _, l := range logs {
					if s, ok := l.(string); ok {
						lines = append(lines, s)
					}
				}
				if rejection := ea.RejectionFromLogs(lines); rejection != nil {
					result["anchor_error"] = rejection
				}
			}
			if instrErr, ok := dataMap["err"].(map[string]interface{}); ok {
				result["instruction_error"] = instrErr
			}
		}
	}

	return result
}

// SimulationErrorFromRPC recognizes a node-side pre-flight failure returned by
// sendTransaction. It returns nil for any other error.
func (ea *ErrorAnalyzer) SimulationErrorFromRPC(err error) *blockchain.SimulationError {
	analysis := ea.AnalyzeRPCError(err)
	if failed, _ := analysis["simulation_failed"].(bool); !failed {
		return nil
	}
	simErr := &blockchain.SimulationError{Err: analysis["message"]}
	if logs, ok := analysis["logs"].([]interface{}); ok {
		for _, l := range logs {
			if s, ok := l.(string); ok {
				simErr.Logs = append(simErr.Logs, s)
			}
		}
	}
	if rejection, ok := analysis["anchor_error"].(*blockchain.ProgramRejection); ok {
		simErr.Rejection = rejection
	}
	return simErr
}

// RejectionFromLogs looks for an Anchor error or a raw custom error code in
// program logs.
func (ea *ErrorAnalyzer) RejectionFromLogs(logs []string) *blockchain.ProgramRejection {
	for _, line := range logs {
		if strings.Contains(line, "AnchorError") {
			anchorErr := ea.parseAnchorErrorLog(line)
			ea.logger.Warn("Anchor error detected",
				zap.Int("code", anchorErr.Code),
				zap.String("name", anchorErr.Name),
				zap.String("message", anchorErr.Msg))
			return &blockchain.ProgramRejection{
				Code:    anchorErr.Code,
				Name:    anchorErr.Name,
				Message: anchorErr.Msg,
				Raw:     line,
			}
		}
	}
	for _, line := range logs {
		if m := customErrorPattern.FindStringSubmatch(line); m != nil {
			code, err := strconv.ParseInt(m[1], 16, 64)
			if err != nil {
				continue
			}
			return &blockchain.ProgramRejection{Code: int(code), Raw: line}
		}
	}
	return nil
}

// RejectionFromStatusErr converts the err field of a signature status or a
// simulation result into a ProgramRejection.
// Shape: {"InstructionError":[1,{"Custom":6004}]}
func (ea *ErrorAnalyzer) RejectionFromStatusErr(errVal interface{}) *blockchain.ProgramRejection {
	if errVal == nil {
		return nil
	}
	rejection := &blockchain.ProgramRejection{Raw: errVal}

	m, ok := errVal.(map[string]interface{})
	if !ok {
		return rejection
	}
	tuple, ok := m["InstructionError"].([]interface{})
	if !ok || len(tuple) != 2 {
		return rejection
	}
	if idx, ok := toInt(tuple[0]); ok {
		rejection.InstructionIndex = idx
	}
	switch detail := tuple[1].(type) {
	case map[string]interface{}:
		if code, ok := toInt(detail["Custom"]); ok {
			rejection.Code = code
		}
	case string:
		rejection.Name = detail
	}
	return rejection
}

func toInt(v interface{}) (int, bool) {
	switch n := v.(type) {
	case float64:
		return int(n), true
	case int:
		return n, true
	case int64:
		return int(n), true
	case uint64:
		return int(n), true
	case json.Number:
		i, err := n.Int64()
		return int(i), err == nil
	default:
		return 0, false
	}
}

// parseAnchorErrorLog parses an Anchor error log string
// Example: "Program log: AnchorError occurred. Error Code: InstructionFallbackNotFound. Error Number: 101. Error Message: Fallback functions are not supported."
func (ea *ErrorAnalyzer) parseAnchorErrorLog(logStr string) AnchorError {
	result := AnchorError{}

	if strings.Contains(logStr, "Error Number:") {
		parts := strings.Split(logStr, "Error Number:")
		if len(parts) > 1 {
			numParts := strings.Split(parts[1], ".")
			if len(numParts) > 0 {
				fmt.Sscanf(strings.TrimSpace(numParts[0]), "%d", &result.Code)
			}
		}
	}

	if strings.Contains(logStr, "Error Code:") {
		parts := strings.Split(logStr, "Error Code:")
		if len(parts) > 1 {
			nameParts := strings.Split(parts[1], ".")
			if len(nameParts) > 0 {
				result.Name = strings.TrimSpace(nameParts[0])
			}
		}
	}

	if strings.Contains(logStr, "Error Message:") {
		parts := strings.Split(logStr, "Error Message:")
		if len(parts) > 1 {
			result.Msg = strings.TrimSuffix(strings.TrimSpace(parts[1]), ".")
		}
	}

	return result
}

// FormatErrorAnalysis formats the error analysis for logging or display
func (ea *ErrorAnalyzer) FormatErrorAnalysis(analysis map[string]interface{}) string {
	jsonBytes, err := json.MarshalIndent(analysis, "", "  ")
	if err != nil {
		return fmt.Sprintf("Error formatting analysis: %v", err)
	}
	return string(jsonBytes)
}

package solbc

import (
	"errors"
	"fmt"
	"strings"

	solanarpc "github.com/gagliardetto/solana-go/rpc"
	"github.com/gagliardetto/solana-go/rpc/jsonrpc"
	"go.uber.org/zap"
)

// IsAccountNotFoundError проверяет, является ли ошибка "not found".
func IsAccountNotFoundError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, solanarpc.ErrNotFound) || errors.Is(err, ErrAccountNotFound) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "not found") || strings.Contains(msg, "could not find account")
}

// SimulationError is a preflight failure with the program logs the node returned.
type SimulationError struct {
	Code    int
	Message string
	Logs    []string
	// ProgramError is the first "Error Message:" / "custom program error" line found in Logs.
	ProgramError string
}

func (e *SimulationError) Error() string {
	if e.ProgramError != "" {
		return fmt.Sprintf("simulation failed (%d): %s: %s", e.Code, e.Message, e.ProgramError)
	}
	return fmt.Sprintf("simulation failed (%d): %s", e.Code, e.Message)
}

// analyzeSendError turns a jsonrpc preflight failure into a *SimulationError.
// Other errors are returned unchanged.
func analyzeSendError(err error, logger *zap.Logger) error {
	var rpcErr *jsonrpc.RPCError
	if !errors.As(err, &rpcErr) {
		return err
	}
	if !strings.Contains(rpcErr.Message, "Transaction simulation failed") {
		return err
	}

	sim := &SimulationError{Code: rpcErr.Code, Message: rpcErr.Message}
	if data, ok := rpcErr.Data.(map[string]interface{}); ok {
		if logs, ok := data["logs"].([]interface{}); ok {
			for _, entry := range logs {
				line, ok := entry.(string)
				if !ok {
					continue
				}
				sim.Logs = append(sim.Logs, line)
				if sim.ProgramError == "" {
					sim.ProgramError = programErrorFromLog(line)
				}
			}
		}
	}

	logger.Warn("Transaction simulation failed",
		zap.Int("code", sim.Code),
		zap.String("program_error", sim.ProgramError),
		zap.Strings("logs", sim.Logs))
	return sim
}

// programErrorFromLog extracts the human part of an Anchor or SPL error log line.
// Example: "Program log: AnchorError occurred. Error Code: X. Error Number: 6000. Error Message: Y."
func programErrorFromLog(line string) string {
	if _, msg, ok := strings.Cut(line, "Error Message:"); ok {
		return strings.TrimSuffix(strings.TrimSpace(msg), ".")
	}
	if _, msg, ok := strings.Cut(line, "Program log: Error: "); ok {
		return strings.TrimSpace(msg)
	}
	if i := strings.Index(line, "custom program error:"); i >= 0 {
		return strings.TrimSpace(line[i:])
	}
	return ""
}

// isBlockhashError reports a stale or unknown blockhash, fixed by rebuilding the transaction.
func isBlockhashError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "BlockhashNotFound") || strings.Contains(msg, "Blockhash not found")
}

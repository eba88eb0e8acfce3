package transaction

import (
	"github.com/gagliardetto/solana-go"
	computebudget "github.com/gagliardetto/solana-go/programs/compute-budget"
)

// DefaultComputeUnits покрывает create_pool и lock_pool с запасом.
const DefaultComputeUnits uint32 = 1_400_000

// PriorityConfig describes the compute budget prepended to a transaction.
type PriorityConfig struct {
	ComputeUnits uint32 // Number of compute units
	PriorityFee  uint64 // Priority fee in micro-lamports
}

// Instructions returns the compute budget instructions for c. Zero fields
// produce no instruction.
func (c PriorityConfig) Instructions() []solana.Instruction {
	var instructions []solana.Instruction

	// Set compute unit limit
	if c.ComputeUnits > 0 {
		instructions = append(instructions, computebudget.NewSetComputeUnitLimitInstruction(c.ComputeUnits).Build())
	}

	// Set compute unit price
	if c.PriorityFee > 0 {
		instructions = append(instructions, computebudget.NewSetComputeUnitPriceInstruction(c.PriorityFee).Build())
	}

	return instructions
}

// WithBudget prepends the compute budget of c to instructions.
func (c PriorityConfig) WithBudget(instructions ...solana.Instruction) []solana.Instruction {
	return append(c.Instructions(), instructions...)
}

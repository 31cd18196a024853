package errors

// Error codes for the block-assembly frontend and the packer itself.
//
// Error code ranges:
// E0100-E0199: .vpasm syntax/parse errors
// E0200-E0299: packer diagnostics (legality, cost model, search)
// W0001-W0099: packer warnings (non-fatal, reported alongside a Plan)

const (
	// E0100: unexpected token while parsing a .vpasm source
	ErrorSyntaxUnexpectedToken = "E0100"

	// E0101: unknown instruction mnemonic
	ErrorSyntaxUnknownMnemonic = "E0101"

	// E0102: reference to an undefined value or label
	ErrorSyntaxUndefinedValue = "E0102"

	// E0103: duplicate value or block label definition
	ErrorSyntaxDuplicateLabel = "E0103"

	// E0104: malformed type annotation
	ErrorSyntaxInvalidType = "E0104"

	// E0200: cost model returned UnknownCost for a required operation
	ErrorPackerUnknownCost = "E0200"

	// E0201: requested target feature not present in the feature set
	ErrorPackerUnsupportedFeature = "E0201"

	// E0202: a pack's elements were not disjoint from the plan under construction
	ErrorPackerOverlappingPack = "E0202"

	// E0203: alias oracle reported MustAlias where reordering was required
	ErrorPackerAliasConflict = "E0203"

	// W0001: a seed pack was discarded because its cost is unknown
	WarningPackerDiscardedPack = "W0001"

	// W0002: MCTS search budget exhausted before the tree stabilized
	WarningPackerSimulationBudgetExhausted = "W0002"
)

// GetErrorDescription returns a human-readable description of the error code.
func GetErrorDescription(code string) string {
	switch code {
	case ErrorSyntaxUnexpectedToken:
		return "Unexpected token in block-assembly source"
	case ErrorSyntaxUnknownMnemonic:
		return "Instruction mnemonic is not recognized"
	case ErrorSyntaxUndefinedValue:
		return "Value or block label is referenced but never defined"
	case ErrorSyntaxDuplicateLabel:
		return "Value or block label is defined more than once"
	case ErrorSyntaxInvalidType:
		return "Type annotation could not be parsed"
	case ErrorPackerUnknownCost:
		return "Cost model has no price for this operation"
	case ErrorPackerUnsupportedFeature:
		return "Required target feature is not present"
	case ErrorPackerOverlappingPack:
		return "Pack overlaps instructions already covered by the plan"
	case ErrorPackerAliasConflict:
		return "Alias oracle forbids reordering these memory accesses"
	case WarningPackerDiscardedPack:
		return "Seed pack discarded: cost model returned no price"
	case WarningPackerSimulationBudgetExhausted:
		return "Search simulation budget exhausted before convergence"
	default:
		return "Unknown error code"
	}
}

// IsWarning reports whether code represents a warning rather than a hard error.
func IsWarning(code string) bool {
	return len(code) > 0 && code[0] == 'W'
}

// GetErrorCategory returns the category of the error based on its code.
func GetErrorCategory(code string) string {
	switch {
	case code >= "E0100" && code < "E0200":
		return "Syntax"
	case code >= "E0200" && code < "E0300":
		return "Packer"
	case len(code) > 0 && code[0] == 'W':
		return "Warning"
	default:
		return "Unknown"
	}
}

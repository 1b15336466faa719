// Package abis carries the ABIs for the contract families the default
// transformers understand, plus the lenient ABI JSON parsing used everywhere
// an ABI is loaded.
package abis

import (
	"embed"
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

//go:embed builtin/*.json
var builtinAbis embed.FS

type BuiltinAbi string

const (
	BuiltinAbi_ERC20           BuiltinAbi = "erc20"
	BuiltinAbi_UniswapV2Pair   BuiltinAbi = "uniswapV2Pair"
	BuiltinAbi_UniswapV3Pool   BuiltinAbi = "uniswapV3Pool"
	BuiltinAbi_UniswapV2Router BuiltinAbi = "uniswapV2Router"
	BuiltinAbi_Aggregator      BuiltinAbi = "aggregator"
	BuiltinAbi_StakingRewards  BuiltinAbi = "stakingRewards"
)

var (
	parsedLock sync.Mutex
	parsed     = map[BuiltinAbi]*abi.ABI{}
)

// GetBuiltinAbiJson returns the raw JSON of a builtin ABI.
func GetBuiltinAbiJson(name BuiltinAbi) (string, error) {
	data, err := builtinAbis.ReadFile(fmt.Sprintf("builtin/%s.json", name))
	if err != nil {
		return "", fmt.Errorf("unknown builtin abi '%s': %w", name, err)
	}
	return string(data), nil
}

// GetBuiltinAbi returns the parsed builtin ABI, parsing it once.
func GetBuiltinAbi(name BuiltinAbi) (*abi.ABI, error) {
	parsedLock.Lock()
	defer parsedLock.Unlock()

	if a, ok := parsed[name]; ok {
		return a, nil
	}
	raw, err := GetBuiltinAbiJson(name)
	if err != nil {
		return nil, err
	}
	a, err := ParseAbiJson(raw)
	if err != nil {
		return nil, err
	}
	parsed[name] = a
	return a, nil
}

// MustGetBuiltinAbi is for package init and tests; the builtin set is embedded
// so a parse failure is a programming error.
func MustGetBuiltinAbi(name BuiltinAbi) *abi.ABI {
	a, err := GetBuiltinAbi(name)
	if err != nil {
		panic(err)
	}
	return a
}

// patterns that we're fine to ignore and not treat as an error
var ignorableAbiErrors = []*regexp.Regexp{
	regexp.MustCompile(`only single receive is allowed`),
	regexp.MustCompile(`only single fallback is allowed`),
}

// ParseAbiJson parses ABI JSON, tolerating the duplicate receive/fallback
// entries produced when proxy and implementation ABIs are concatenated.
func ParseAbiJson(json string) (*abi.ABI, error) {
	a := &abi.ABI{}

	err := a.UnmarshalJSON([]byte(json))
	if err != nil {
		for _, pattern := range ignorableAbiErrors {
			if pattern.MatchString(err.Error()) {
				return a, nil
			}
		}
		return nil, err
	}
	return a, nil
}

func stripJsonBrackets(abi string) string {
	trimmed := strings.TrimSpace(abi)
	if len(trimmed) < 2 {
		return ""
	}
	return strings.TrimSpace(trimmed[1 : len(trimmed)-1])
}

// CombineAbis concatenates JSON ABI arrays, skipping empty ones. Earlier
// entries win when an event or method appears in more than one.
func CombineAbis(abiJsons ...string) string {
	abisToCombine := make([]string, 0, len(abiJsons))
	for _, a := range abiJsons {
		if stripped := stripJsonBrackets(a); stripped != "" {
			abisToCombine = append(abisToCombine, stripped)
		}
	}
	return fmt.Sprintf("[%s]", strings.Join(abisToCombine, ","))
}

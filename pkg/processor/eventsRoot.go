package processor

import (
	"encoding/binary"
	"sort"

	"github.com/Layr-Labs/sidecar-events/pkg/utils"
	"github.com/wealdtech/go-merkletree/v2"
	"github.com/wealdtech/go-merkletree/v2/keccak256"
)

var merkleLeafPrefix_Block = []byte("block:")

// ComputeEventsRoot returns the keccak256 merkle root over the sorted content
// ids of a block. The block number is always the first leaf, so a block
// without events still has a root.
func ComputeEventsRoot(blockNumber uint64, contentIds []string) (string, error) {
	ids := make([]string, len(contentIds))
	copy(ids, contentIds)
	sort.Strings(ids)

	blockLeaf := make([]byte, 0, len(merkleLeafPrefix_Block)+8)
	blockLeaf = append(blockLeaf, merkleLeafPrefix_Block...)
	leaves := [][]byte{binary.BigEndian.AppendUint64(blockLeaf, blockNumber)}
	for _, id := range ids {
		leaves = append(leaves, []byte(id))
	}
	tree, err := merkletree.NewTree(
		merkletree.WithData(leaves),
		merkletree.WithHashType(keccak256.New()),
	)
	if err != nil {
		return "", err
	}
	return utils.ConvertBytesToString(tree.Root()), nil
}

func (p *Processor) updateEventsRoot(blockNumber uint64) (string, error) {
	ids, err := p.eventStore.ListContentIdsForBlock(blockNumber)
	if err != nil {
		return "", err
	}
	root, err := ComputeEventsRoot(blockNumber, ids)
	if err != nil {
		return "", err
	}
	if err := p.jobStore.SetBlockEventsRoot(blockNumber, root); err != nil {
		return "", err
	}
	return root, nil
}

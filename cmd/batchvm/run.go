package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/batchvm/batchvm/batch"
	"github.com/batchvm/batchvm/core/fixture"
	"github.com/batchvm/batchvm/core/vm"
)

// instanceDoc is the JSON-ready shape of one instance's outcome, keyed so
// a batch's output is one array of per-instance trace documents rather
// than one flat stream.
type instanceDoc struct {
	Name      string        `json:"name"`
	Index     fixture.Index `json:"index"`
	ErrorCode uint8         `json:"error_code"`
	GasUsed   uint64        `json:"gas_used"`
	GasRefund uint64        `json:"gas_refund"`
	Reverted  bool          `json:"reverted"`
	Trace     []vm.DocEntry `json:"trace"`
}

func runAction(c *cli.Context) error {
	path := c.Args().First()
	if path == "" {
		exitCode = 1
		return fmt.Errorf("missing fixture path")
	}

	instances, err := fixture.LoadInstances(path)
	if err != nil {
		exitCode = 1
		return fmt.Errorf("load fixture: %w", err)
	}

	metrics := batch.NewMetrics()
	outcomes := batch.Run(context.Background(), instances, c.Int("workers"), metrics)

	docs := make([]instanceDoc, len(outcomes))
	for i, o := range outcomes {
		docs[i] = instanceDoc{
			Name:      o.Instance.Name,
			Index:     o.Instance.Index,
			ErrorCode: uint8(o.Result.Outcome.ErrCode),
			GasUsed:   o.Result.Outcome.GasUsed,
			GasRefund: o.Result.Outcome.GasRefund,
			Reverted:  o.Result.Outcome.Reverted,
			Trace:     o.Result.Trace.Render(),
		}
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(docs); err != nil {
		exitCode = 1
		return fmt.Errorf("encode trace documents: %w", err)
	}

	if batch.Failed(outcomes) {
		exitCode = 1
	}
	return nil
}

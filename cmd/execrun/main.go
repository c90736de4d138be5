// Command execrun drives the execution core against a handful of
// fixed, in-memory plans instead of a parsed SQL query — a bench for
// the operator/pipeline/scheduler packages. Each scenario below mirrors one of the
// canned plans used to validate the core (filter+projection,
// aggregation, joins, limit, global sort).
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/vecql/engine/logs"
)

var rootCmd = &cobra.Command{
	Use:   "execrun",
	Short: "Run a fixed demo plan through the execution core",
}

func init() {
	rootCmd.AddCommand(
		scenarioCmd("filter-projection", "Scan -> Filter(x>2) -> Project(x*10)", runFilterProjection),
		scenarioCmd("hash-aggregate", "Scan -> HashAggregate(group=key, sum(value)), repartitioned", runHashAggregate),
		scenarioCmd("hash-join", "Build/Probe -> HashJoin, inner join on key", runHashJoin),
		scenarioCmd("limit", "Scan -> Limit(10), 1000 rows across partitions", runLimit),
		scenarioCmd("sort", "Scan -> Sort ASC, globally merged", runSort),
	)
}

func scenarioCmd(use, short string, run func(ctx context.Context) error) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context())
		},
	}
}

func main() {
	logs.InitializeFileLogger()
	defer logs.CloseLogger()

	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

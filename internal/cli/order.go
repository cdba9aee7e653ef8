package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/spf13/cobra"
)

// NewOrderCmd создаёт группу команд для работы с заказами.
func NewOrderCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "order",
		Short: "Manage ingested orders",
	}

	cmd.AddCommand(
		newOrderIngestCmd(clientFn, outputFn),
		newOrderListCmd(clientFn, outputFn),
	)

	return cmd
}

func newOrderIngestCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Ingest a batch of orders from a JSON file or stdin",
		Long: `Ingest reads a JSON array of orders and submits it to the API.

The input is read from --file, or from stdin when --file is omitted:

  gridflow order ingest --file orders.json
  cat orders.json | gridflow order ingest`,
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			var data []byte
			var err error
			if file != "" {
				data, err = os.ReadFile(file)
				if err != nil {
					return fmt.Errorf("read %s: %w", file, err)
				}
			} else {
				data, err = io.ReadAll(os.Stdin)
				if err != nil {
					return fmt.Errorf("read stdin: %w", err)
				}
			}

			if !json.Valid(data) {
				return fmt.Errorf("input is not valid JSON")
			}

			resp, err := client.IngestOrders(json.RawMessage(data))
			if err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Ingested %d orders", resp.Count))
			out.Print(
				[]string{"MESSAGE", "COUNT"},
				[][]string{{resp.Message, strconv.Itoa(resp.Count)}},
				resp,
			)
			return nil
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "Path to a JSON file with orders (stdin if omitted)")

	return cmd
}

func newOrderListCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List active orders",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			orders, err := client.ListOrders(limit)
			if err != nil {
				return err
			}

			headers := []string{"RECORD_ID", "STATUS", "POWER", "PRICE", "EXPIRES"}
			rows := make([][]string, len(orders))
			for i, o := range orders {
				rows[i] = []string{
					o.RecordID, o.Status,
					strconv.FormatFloat(o.Power, 'f', -1, 64),
					strconv.FormatFloat(o.Price, 'f', -1, 64),
					o.ExpiresAt,
				}
			}

			out.Print(headers, rows, orders)
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum number of results")

	return cmd
}

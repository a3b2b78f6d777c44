// Command exchangectl is a CLI client for exchanged, adapted from the
// teacher pack's cmd/client (flag-per-subcommand JSON poster) onto cobra
// subcommands matching the NimbleMarkets-dbn-go CLI shape.
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"
)

var (
	serverURL string
	apiKey    string
)

func main() {
	root := &cobra.Command{
		Use:   "exchangectl",
		Short: "exchangectl talks to a running exchanged instance",
	}
	root.PersistentFlags().StringVarP(&serverURL, "server", "s", "http://localhost:8080", "exchanged base URL")
	root.PersistentFlags().StringVarP(&apiKey, "api-key", "k", "", "team API key (from `exchangectl register`)")

	root.AddCommand(registerCmd())
	root.AddCommand(submitCmd())
	root.AddCommand(cancelCmd())
	root.AddCommand(ordersCmd())
	root.AddCommand(positionsCmd())
	root.AddCommand(streamCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func registerCmd() *cobra.Command {
	var name, role string
	cmd := &cobra.Command{
		Use:   "register",
		Short: "register a new team and print its API key",
		RunE: func(cmd *cobra.Command, args []string) error {
			return postAndPrint("/teams", map[string]interface{}{
				"team_name": name,
				"role":      role,
			}, "")
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "team name")
	cmd.Flags().StringVar(&role, "role", "market_maker", "team role (market_maker|hedge_fund|arbitrage_desk|retail)")
	return cmd
}

func submitCmd() *cobra.Command {
	var instrument, side, orderType, price, clientOrderID string
	var qty int64
	cmd := &cobra.Command{
		Use:   "submit",
		Short: "submit a new order",
		RunE: func(cmd *cobra.Command, args []string) error {
			body := map[string]interface{}{
				"instrument_id": instrument,
				"side":          side,
				"order_type":    orderType,
				"quantity":      qty,
			}
			if price != "" {
				body["price"] = price
			}
			if clientOrderID != "" {
				body["client_order_id"] = clientOrderID
			}
			return postAndPrint("/orders", body, apiKey)
		},
	}
	cmd.Flags().StringVar(&instrument, "instrument", "", "instrument id")
	cmd.Flags().StringVar(&side, "side", "buy", "buy|sell")
	cmd.Flags().StringVar(&orderType, "type", "limit", "limit|market")
	cmd.Flags().StringVar(&price, "price", "", "limit price (required for limit orders)")
	cmd.Flags().Int64Var(&qty, "qty", 0, "order quantity")
	cmd.Flags().StringVar(&clientOrderID, "client-order-id", "", "caller-supplied id echoed back in responses")
	return cmd
}

func cancelCmd() *cobra.Command {
	var instrument string
	cmd := &cobra.Command{
		Use:   "cancel [order-id]",
		Short: "cancel a resting order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			url := fmt.Sprintf("%s/orders/%s?instrument_id=%s", serverURL, args[0], instrument)
			req, err := http.NewRequest(http.MethodDelete, url, nil)
			if err != nil {
				return err
			}
			req.Header.Set("X-API-Key", apiKey)
			return doAndPrint(req)
		},
	}
	cmd.Flags().StringVar(&instrument, "instrument", "", "instrument the order rests on")
	return cmd
}

func ordersCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "orders",
		Short: "list this team's open orders",
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := http.NewRequest(http.MethodGet, serverURL+"/orders", nil)
			if err != nil {
				return err
			}
			req.Header.Set("X-API-Key", apiKey)
			return doAndPrint(req)
		},
	}
}

func positionsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "positions",
		Short: "show this team's positions",
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := http.NewRequest(http.MethodGet, serverURL+"/positions", nil)
			if err != nil {
				return err
			}
			req.Header.Set("X-API-Key", apiKey)
			return doAndPrint(req)
		},
	}
}

func streamCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stream",
		Short: "connect to the push channel and print events as they arrive",
		RunE: func(cmd *cobra.Command, args []string) error {
			u := toWSURL(serverURL) + "/ws?api_key=" + apiKey
			conn, _, err := websocket.DefaultDialer.Dial(u, nil)
			if err != nil {
				return fmt.Errorf("dial %s: %w", u, err)
			}
			defer conn.Close()

			for {
				_, data, err := conn.ReadMessage()
				if err != nil {
					return fmt.Errorf("stream closed: %w", err)
				}
				printJSONBytes(data)
			}
		},
	}
}

func toWSURL(httpURL string) string {
	switch {
	case len(httpURL) >= 5 && httpURL[:5] == "https":
		return "wss" + httpURL[5:]
	case len(httpURL) >= 4 && httpURL[:4] == "http":
		return "ws" + httpURL[4:]
	default:
		return httpURL
	}
}

func postAndPrint(path string, body map[string]interface{}, key string) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequest(http.MethodPost, serverURL+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if key != "" {
		req.Header.Set("X-API-Key", key)
	}
	return doAndPrint(req)
}

func doAndPrint(req *http.Request) error {
	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	printJSONBytes(data)
	return nil
}

func printJSONBytes(data []byte) {
	var obj interface{}
	if err := json.Unmarshal(data, &obj); err != nil {
		fmt.Println(string(data))
		return
	}
	pretty, _ := json.MarshalIndent(obj, "", "  ")
	fmt.Println(string(pretty))
}

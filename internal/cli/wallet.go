package cli

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/petalworks/blossom/internal/daemon"
	"github.com/petalworks/blossom/internal/domain"
)

func init() {
	rootCmd.AddCommand(balanceCmd)
	rootCmd.AddCommand(historyCmd)
	historyCmd.Flags().IntP("limit", "n", 20, "number of entries to show")
}

var balanceCmd = &cobra.Command{
	Use:   "balance",
	Short: "Show the current coin balance",
	RunE:  runBalance,
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recent wallet transactions",
	RunE:  runHistory,
}

func runBalance(cmd *cobra.Command, args []string) error {
	cfg, err := daemon.Load(configPath)
	if err != nil {
		return err
	}

	var out struct {
		Balance       int64 `json:"balance"`
		FreeUses      int64 `json:"free_uses"`
		TodaySpending int64 `json:"today_spending"`
		TodayRecharge int64 `json:"today_recharge"`
	}
	if err := getJSON(cfg, "/api/wallet/balance", &out); err != nil {
		return err
	}

	fmt.Printf("Balance:        %d coins\n", out.Balance)
	fmt.Printf("Free uses left: %d\n", out.FreeUses)
	fmt.Printf("Spent today:    %d\n", out.TodaySpending)
	fmt.Printf("Added today:    %d\n", out.TodayRecharge)
	return nil
}

func runHistory(cmd *cobra.Command, args []string) error {
	cfg, err := daemon.Load(configPath)
	if err != nil {
		return err
	}
	limit, _ := cmd.Flags().GetInt("limit")

	var out struct {
		Transactions []domain.Transaction `json:"transactions"`
	}
	if err := getJSON(cfg, fmt.Sprintf("/api/wallet/transactions?limit=%d", limit), &out); err != nil {
		return err
	}

	if len(out.Transactions) == 0 {
		fmt.Println("No transactions.")
		return nil
	}
	for _, tx := range out.Transactions {
		fmt.Printf("%s  %+4d  %4d  %s\n",
			tx.Timestamp.Local().Format("2006-01-02 15:04"), tx.Amount, tx.Balance, tx.Reason)
	}
	return nil
}

// getJSON hits the running daemon's API. The CLI never touches the store
// directly while a daemon may hold it.
func getJSON(cfg daemon.Config, path string, v interface{}) error {
	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Get("http://" + cfg.API.Addr() + path)
	if err != nil {
		return fmt.Errorf("is blossomd running? %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("daemon answered %s", resp.Status)
	}
	return json.NewDecoder(resp.Body).Decode(v)
}

// Command-line interface entrypoint for a terminal chat REPL.
package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"walchat/walchat/config"
	"walchat/walchat/controllers"
	"walchat/walchat/services/llm"
	"walchat/walchat/sources/memstore"
	"walchat/walchat/sources/storage"
	"walchat/walchat/utils/logging"
	"walchat/walchat/wallet"

	"go.uber.org/zap"
)

func main() {
	logging.InitLogger()
	cfg := config.LoadConfig()

	address := cfg.WalletAddress
	if address == "" {
		address = "walchat-dev"
	}
	provider := wallet.NewStaticProvider(address)
	unsubscribe := provider.OnAccountsChanged(func(accounts []string) {
		if len(accounts) == 0 {
			fmt.Println("wallet disconnected")
			return
		}
		fmt.Println("wallet connected:", accounts[0])
	})
	defer unsubscribe()

	accounts, err := provider.RequestAccounts(context.Background())
	if err != nil {
		logging.ErrorLogger.Error("wallet connect error", zap.Error(err))
		os.Exit(1)
	}

	store := memstore.NewStore(storage.NewLogArchive())
	ctrl := controllers.NewChatController(store, llm.NewClient(cfg))
	logging.AppLogger.Info("chat REPL started",
		zap.String("address", accounts[0]),
		zap.String("session_id", store.CurrentSession().ID),
	)

	fmt.Println("walchat: type a message, or:")
	fmt.Println("  /new            start a new session")
	fmt.Println("  /sessions       list sessions")
	fmt.Println("  /select <id>    switch session")
	fmt.Println("  exit            quit")
	fmt.Println()

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		switch {
		case line == "exit" || line == "quit":
			return
		case line == "":
			continue
		case line == "/new":
			session := ctrl.NewSession()
			fmt.Println("new session:", session.ID)
		case line == "/sessions":
			current := store.CurrentSession().ID
			for _, s := range ctrl.Sessions() {
				marker := " "
				if s.ID == current {
					marker = "*"
				}
				fmt.Printf("%s %s  %q  (%d messages)\n", marker, s.ID, s.Title, len(s.Messages))
			}
		case strings.HasPrefix(line, "/select "):
			id := strings.TrimSpace(strings.TrimPrefix(line, "/select "))
			if err := ctrl.SelectSession(id); err != nil {
				fmt.Println("error:", err)
			}
		default:
			ch, errCh := ctrl.ChatStream(context.Background(), line)
			for fragment := range ch {
				fmt.Print(fragment)
			}
			if err := <-errCh; err != nil {
				fmt.Println("error:", err)
				continue
			}
			fmt.Println()
		}
	}
}

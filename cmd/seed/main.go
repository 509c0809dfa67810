package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/ikkim/inspection-backend/config"
	"github.com/ikkim/inspection-backend/internal/app/repository"
	"github.com/ikkim/inspection-backend/internal/db"
	"github.com/ikkim/inspection-backend/pkg/util"
)

func main() {
	printTokens := flag.Bool("tokens", false, "print an access token for every imported user (development only)")
	assumeYes := flag.Bool("y", false, "skip the confirmation prompt")
	flag.Usage = func() {
		fmt.Fprintln(os.Stderr, "Usage: go run ./cmd/seed [-tokens] [-y] <roster.xlsx>")
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() < 1 {
		flag.Usage()
		os.Exit(2)
	}
	filePath := flag.Arg(0)

	// 설정 로드
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}

	fmt.Printf("Reading XLSX file: %s\n", filePath)
	users, skipped, err := readRosterFromXLSX(filePath)
	if err != nil {
		log.Fatal("Failed to read XLSX:", err)
	}
	for _, s := range skipped {
		fmt.Printf("  skip row %d: %s\n", s.Row, s.Reason)
	}
	fmt.Printf("Total users to import: %d (skipped %d)\n", len(users), len(skipped))

	if !*assumeYes {
		fmt.Print("Do you want to proceed with the import? (yes/no): ")
		var confirm string
		fmt.Scanln(&confirm)
		if confirm != "yes" && confirm != "y" {
			fmt.Println("Import cancelled.")
			return
		}
	}

	// 사용자는 Identity 저장소에만 있다
	stores, err := db.Initialize(&cfg.Stores)
	if err != nil {
		log.Fatal("Failed to connect to stores:", err)
	}
	defer stores.Close()

	if err := db.Migrate(stores); err != nil {
		log.Fatal("Failed to run migrations:", err)
	}

	userRepo := repository.NewUserRepository(stores.Identity)

	imported := 0
	for i := range users {
		user := &users[i]
		if err := userRepo.Create(user); err != nil {
			fmt.Printf("  failed %s: %v\n", user.Email, err)
			continue
		}
		imported++

		if *printTokens {
			tokens, err := util.GenerateTokenPair(user.ID, user.Email, string(user.Role), cfg.JWT.Secret, cfg.JWT.AccessTokenExpiry, cfg.JWT.RefreshTokenExpiry)
			if err != nil {
				fmt.Printf("  token for %s: %v\n", user.Email, err)
				continue
			}
			fmt.Printf("  %-30s %-15s %s\n", user.Email, user.Role, tokens.AccessToken)
		}
	}

	fmt.Println("Import completed!")
	fmt.Printf("Total users imported: %d\n", imported)
}

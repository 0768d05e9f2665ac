//cmd/keygen/main.go
package main

import (
	"fmt"
	"log"

	"github.com/bramblehq/mailvine-backend/internal/crypto"
)

// Prints a fresh master key suitable for ENCRYPTION_KEY.
func main() {
	key, err := crypto.GenerateMasterKey()
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println(key)
}

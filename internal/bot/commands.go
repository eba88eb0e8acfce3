// internal/bot/commands.go
package bot

import (
	"fmt"

	"github.com/gagliardetto/solana-go"

	"github.com/rovshanmuradov/pump-meteora/internal/config"
	"github.com/rovshanmuradov/pump-meteora/internal/dex/bondingcurve"
)

// Command представляет команду CLI, которую выполняет Runner.
type Command interface {
	GetType() string
	Validate() error
}

// ValidationError сообщает о некорректном вводе пользователя.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func parseMint(field, value string) (solana.PublicKey, error) {
	if value == "" {
		return solana.PublicKey{}, &ValidationError{Field: field, Reason: "is required"}
	}
	mint, err := solana.PublicKeyFromBase58(value)
	if err != nil {
		return solana.PublicKey{}, &ValidationError{Field: field, Reason: "not a valid public key"}
	}
	return mint, nil
}

// CreateConfigCommand записывает глобальный Config программы.
type CreateConfigCommand struct {
	Settings config.CurveSettings
}

func (c CreateConfigCommand) GetType() string {
	return "config"
}

func (c CreateConfigCommand) Validate() error {
	cfg := config.Config{Curve: c.Settings}
	return cfg.ValidateCurve()
}

// LaunchCommand создаёт новый токен и его кривую.
type LaunchCommand struct {
	Token config.TokenSettings
}

func (c LaunchCommand) GetType() string {
	return "curve"
}

func (c LaunchCommand) Validate() error {
	cfg := config.Config{Token: c.Token}
	return cfg.ValidateToken()
}

// SwapCommand покупает (Style 0) или продаёт (Style 1) токен на кривой.
// Amount в лампортах при покупке и в базовых единицах токена при продаже.
type SwapCommand struct {
	Mint        string
	Amount      int64
	Style       int
	SlippageBps uint64
}

func (c SwapCommand) GetType() string {
	return "swap"
}

func (c SwapCommand) Validate() error {
	if _, err := parseMint("token", c.Mint); err != nil {
		return err
	}
	if c.Amount <= 0 {
		return &ValidationError{Field: "amount", Reason: fmt.Sprintf("must be greater than 0, got %d", c.Amount)}
	}
	if c.Style != int(bondingcurve.SwapBuy) && c.Style != int(bondingcurve.SwapSell) {
		return &ValidationError{Field: "style", Reason: fmt.Sprintf("must be 0 (buy) or 1 (sell), got %d", c.Style)}
	}
	if c.SlippageBps >= bondingcurve.BasisPointsDenominator {
		return &ValidationError{Field: "slippage", Reason: "must be below 10000 bps"}
	}
	return nil
}

// Direction возвращает направление свапа.
func (c SwapCommand) Direction() bondingcurve.SwapDirection {
	return bondingcurve.SwapDirection(c.Style)
}

// PriceCommand читает текущую цену токена.
type PriceCommand struct {
	Mint string
}

func (c PriceCommand) GetType() string {
	return "getCurrentPrice"
}

func (c PriceCommand) Validate() error {
	_, err := parseMint("mint", c.Mint)
	return err
}

// CalculateSwapCommand считает, сколько токенов даст покупка на Amount лампортов.
type CalculateSwapCommand struct {
	Mint   string
	Amount int64
}

func (c CalculateSwapCommand) GetType() string {
	return "calculateSwap"
}

func (c CalculateSwapCommand) Validate() error {
	if _, err := parseMint("mint", c.Mint); err != nil {
		return err
	}
	if c.Amount <= 0 {
		return &ValidationError{Field: "amount", Reason: fmt.Sprintf("must be greater than 0, got %d", c.Amount)}
	}
	return nil
}

// MigrateCommand переносит завершённую кривую в пул.
type MigrateCommand struct {
	Mint string
	// LookupTable переиспользует существующую таблицу вместо создания новой.
	LookupTable string
	// ReconcileOnly только читает состояние сети, ничего не отправляя.
	ReconcileOnly bool
}

func (c MigrateCommand) GetType() string {
	return "migrate"
}

func (c MigrateCommand) Validate() error {
	if _, err := parseMint("mint", c.Mint); err != nil {
		return err
	}
	if c.LookupTable != "" {
		if _, err := parseMint("lookup-table", c.LookupTable); err != nil {
			return err
		}
	}
	return nil
}

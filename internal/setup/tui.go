package setup

import (
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/fundme/config"
	"gopkg.in/yaml.v3"
)

// GeneratedConfigFile is where the wizard writes its result.
const GeneratedConfigFile = "config.gen.yaml"

var (
	subtle    = lipgloss.AdaptiveColor{Light: "#D9DCCF", Dark: "#383838"}
	highlight = lipgloss.AdaptiveColor{Light: "#874BFD", Dark: "#7D56F4"}
	special   = lipgloss.AdaptiveColor{Light: "#43BF6D", Dark: "#73F59F"}

	headerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("205")).
			Background(highlight).
			Padding(1, 2).
			Bold(true).
			MarginBottom(1)

	stepStyle = lipgloss.NewStyle().
			Foreground(special).
			Bold(true).
			MarginTop(1).
			MarginBottom(0)
)

// Answers are the values collected by the wizard.
type Answers struct {
	Network     string
	PriceSource string
	Pair        string
	RPCURL      string
	MinimumUSD  string
	MockAnswer  string
	Owner       string
}

// RunTUI launches the terminal configuration wizard and returns the path of
// the written config.
func RunTUI() (string, error) {
	a := Answers{
		Network:     "hardhat",
		PriceSource: config.PriceSourceChainlink,
		Pair:        "ETH_USDT",
		MinimumUSD:  "50",
		MockAnswer:  "2000",
	}
	var confirm bool

	step("STEP 1: NETWORK")
	fmt.Println(lipgloss.NewStyle().Foreground(subtle).Render("Development networks get a mock price feed.\n"))
	err := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Target network").
				Options(
					huh.NewOption("Hardhat (in-process dev chain)", "hardhat"),
					huh.NewOption("Localhost (dev node on 127.0.0.1:8545)", "localhost"),
					huh.NewOption("Sepolia", "sepolia"),
					huh.NewOption("Rinkeby", "rinkeby"),
				).
				Value(&a.Network),
		),
	).Run()
	if err != nil {
		return "", err
	}

	dev := a.Network == "hardhat" || a.Network == "localhost"

	if dev {
		step("STEP 2: MOCK PRICE FEED")
		err = huh.NewForm(
			huh.NewGroup(
				huh.NewInput().
					Title("Initial ETH/USD answer").
					Description("Price reported by the mock feed (e.g. 2000)").
					Value(&a.MockAnswer).
					Validate(validatePositive),
			),
		).Run()
	} else {
		step("STEP 2: PRICE SOURCE")
		err = huh.NewForm(
			huh.NewGroup(
				huh.NewSelect[string]().
					Title("Where should the ETH/USD rate come from?").
					Options(
						huh.NewOption("Chainlink price feed", config.PriceSourceChainlink),
						huh.NewOption("Binance ticker", config.PriceSourceBinance),
						huh.NewOption("Bybit ticker", config.PriceSourceBybit),
						huh.NewOption("Hyperliquid mid price", config.PriceSourceHyperliquid),
					).
					Value(&a.PriceSource),
			),
		).Run()
		if err != nil {
			return "", err
		}

		fields := []huh.Field{
			huh.NewInput().
				Title("Owner address").
				Description("Leave empty to use DEPLOYER_PRIVATE_KEY").
				Value(&a.Owner).
				Validate(validateAddress),
		}
		if a.PriceSource == config.PriceSourceChainlink {
			fields = append(fields, huh.NewInput().
				Title("RPC URL").
				Description("JSON-RPC endpoint used to read the price feed").
				Value(&a.RPCURL).
				Validate(func(s string) error {
					if strings.TrimSpace(s) == "" {
						return fmt.Errorf("rpc url cannot be empty")
					}
					return nil
				}))
		} else {
			fields = append(fields, huh.NewInput().
				Title("Ticker pair").
				Description("Must contain underscore (e.g. ETH_USDT)").
				Value(&a.Pair).
				Validate(validatePair))
		}
		err = huh.NewForm(huh.NewGroup(fields...)).Run()
	}
	if err != nil {
		return "", err
	}

	step("STEP 3: MINIMUM CONTRIBUTION")
	err = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Minimum contribution in USD").
				Value(&a.MinimumUSD).
				Validate(validatePositive),
		),
	).Run()
	if err != nil {
		return "", err
	}

	step("FINAL CONFIRMATION")
	fmt.Println(lipgloss.NewStyle().Border(lipgloss.NormalBorder()).Padding(1).Render(a.summary()))

	err = huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title("Save Configuration?").
				Affirmative("Yes, save").
				Negative("No, exit").
				Value(&confirm),
		),
	).Run()
	if err != nil {
		return "", err
	}
	if !confirm {
		return "", fmt.Errorf("setup cancelled by user")
	}

	if err := Write(GeneratedConfigFile, a); err != nil {
		return "", err
	}

	fmt.Println(lipgloss.NewStyle().Foreground(special).Render(fmt.Sprintf("\n✓ Configuration saved to %s", GeneratedConfigFile)))
	return GeneratedConfigFile, nil
}

func step(title string) {
	fmt.Print("\033[H\033[2J")
	fmt.Println(headerStyle.Render("FUNDME CONFIG WIZARD"))
	fmt.Println(stepStyle.Render(title))
}

func (a Answers) summary() string {
	source := a.PriceSource
	if a.Network == "hardhat" || a.Network == "localhost" {
		source = "mock @ " + a.MockAnswer
	}
	return fmt.Sprintf("Network: %s\nPrice source: %s\nMinimum: %s USD\n", a.Network, source, a.MinimumUSD)
}

// Build turns wizard answers into a config document.
func Build(a Answers) (config.ConfigTmp, error) {
	tmp := config.ConfigTmp{
		Network:    a.Network,
		MinimumUSD: a.MinimumUSD,
		Owner:      strings.TrimSpace(a.Owner),
	}

	switch a.Network {
	case "hardhat", "localhost":
		tmp.MockInitialAnswer = a.MockAnswer
	default:
		tmp.PriceSource = a.PriceSource
		if a.PriceSource == config.PriceSourceChainlink {
			tmp.Networks = config.DefaultNetworks()
			for i := range tmp.Networks {
				if tmp.Networks[i].Name == a.Network {
					tmp.Networks[i].RPCURL = strings.TrimSpace(a.RPCURL)
				}
			}
		} else {
			tmp.Pair = a.Pair
		}
	}

	data, err := yaml.Marshal(tmp)
	if err != nil {
		return config.ConfigTmp{}, errors.Wrap(err, "encode config")
	}
	if _, err := config.Parse(data); err != nil {
		return config.ConfigTmp{}, err
	}

	return tmp, nil
}

// Write builds the config from a and saves it to path.
func Write(path string, a Answers) error {
	tmp, err := Build(a)
	if err != nil {
		return err
	}

	data, err := yaml.Marshal(tmp)
	if err != nil {
		return fmt.Errorf("failed to generate yaml: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to save config file: %w", err)
	}

	return nil
}

func validatePositive(s string) error {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return fmt.Errorf("must be a valid number")
	}
	if !d.IsPositive() {
		return fmt.Errorf("must be greater than zero")
	}
	return nil
}

func validateAddress(s string) error {
	if s = strings.TrimSpace(s); s != "" && !common.IsHexAddress(s) {
		return fmt.Errorf("must be a 0x-prefixed hex address")
	}
	return nil
}

func validatePair(s string) error {
	if s == "" {
		return fmt.Errorf("pair cannot be empty")
	}
	if !strings.Contains(s, "_") {
		return fmt.Errorf("invalid format: must be BASE_QUOTE (e.g. ETH_USDT)")
	}
	return nil
}

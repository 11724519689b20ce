package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/vadiminshakov/fundme/config"
	"github.com/vadiminshakov/fundme/internal/conversion"
	"github.com/vadiminshakov/fundme/internal/deploy"
	"github.com/vadiminshakov/fundme/internal/domain"
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205"))
	labelStyle = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#874BFD", Dark: "#7D56F4"})
	boxStyle   = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
)

func printStatus(ctx context.Context, d *deploy.Deployment, cfg config.Config, out io.Writer) error {
	l := d.Ledger

	var b strings.Builder
	row := func(label, value string) {
		fmt.Fprintf(&b, "%s %s\n", labelStyle.Render(fmt.Sprintf("%-14s", label)), value)
	}

	b.WriteString(titleStyle.Render("FundMe") + "\n")
	row("network", fmt.Sprintf("%s (%d)", d.Network.Name, d.Network.ChainID))
	row("owner", l.Owner().Hex())
	row("minimum", domain.FormatUnits(l.Minimum(), domain.StableDecimals)+" USD")

	rate, err := l.PriceFeed().LatestRate(ctx)
	if err != nil {
		row("rate", "unavailable: "+err.Error())
	} else {
		row("rate", rate.String()+" USD/ETH")
		if minNative, err := conversion.MinimumNative(l.Minimum(), rate); err == nil {
			row("min fund", domain.FormatEther(minNative)+" ETH")
		}
	}

	row("balance", domain.FormatEther(l.Balance(ctx))+" ETH")
	row("funders", fmt.Sprintf("%d", l.FunderCount(ctx)))

	seen := make(map[string]bool)
	for _, f := range l.Funders(ctx) {
		if seen[f.Hex()] {
			continue
		}
		seen[f.Hex()] = true
		row("  "+f.Hex()[:10], domain.FormatEther(l.AmountFunded(ctx, f))+" ETH")
	}

	if d.Mock != nil {
		round := d.Mock.LatestRoundData()
		row("mock round", fmt.Sprintf("%d, %d decimals", round.ID, cfg.MockDecimals))
	}

	fmt.Fprintln(out, boxStyle.Render(strings.TrimRight(b.String(), "\n")))
	return nil
}

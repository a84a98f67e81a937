package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/devicelab-dev/uia2-server/pkg/uiautomator2"
)

// Attributes printed by find, in order.
var findAttributes = []string{"text", "resource-id", "class", "content-desc", "enabled", "displayed"}

var urlFlag = &cli.StringFlag{
	Name:  "url",
	Usage: "Server URL (default: http://127.0.0.1:<port>)",
}

var statusCommand = &cli.Command{
	Name:  "status",
	Usage: "Report the status of a running server",
	Flags: []cli.Flag{urlFlag},
	Action: func(c *cli.Context) error {
		client, err := newClient(c)
		if err != nil {
			return err
		}
		return printStatus(os.Stdout, client)
	},
}

var findCommand = &cli.Command{
	Name:      "find",
	Usage:     "Find elements on a running server and print their attributes",
	ArgsUsage: "<selector>",
	Description: `Open a session, run one find request and print each match.

Examples:
  uia2-server find --strategy text Login
  uia2-server find --strategy "-android uiautomator" 'new UiSelector().clickable(true)'`,
	Flags: []cli.Flag{
		urlFlag,
		&cli.StringFlag{
			Name:  "strategy",
			Usage: "Locator strategy (id, accessibility id, class name, text, -android uiautomator, xpath)",
			Value: uiautomator2.StrategyID,
		},
	},
	Action: func(c *cli.Context) error {
		if c.NArg() != 1 {
			return fmt.Errorf("find requires exactly one selector argument")
		}
		client, err := newClient(c)
		if err != nil {
			return err
		}
		return printMatches(os.Stdout, client, c.String("strategy"), c.Args().First())
	},
}

func newClient(c *cli.Context) (*uiautomator2.Client, error) {
	if url := c.String("url"); url != "" {
		return uiautomator2.NewClient(url), nil
	}
	cfg, err := loadConfig(c)
	if err != nil {
		return nil, err
	}
	return uiautomator2.NewClientTCP(cfg.Port), nil
}

func printStatus(w io.Writer, client *uiautomator2.Client) error {
	st, err := client.Status()
	if err != nil {
		return fmt.Errorf("server not reachable: %w", err)
	}
	fmt.Fprintf(w, "Ready:        %v\n", st.Ready)
	fmt.Fprintf(w, "Message:      %s\n", st.Message)
	fmt.Fprintf(w, "Version:      %s\n", st.Build.Version)
	fmt.Fprintf(w, "Platform:     %s\n", st.Build.PlatformVersion)
	fmt.Fprintf(w, "Multi-window: %v\n", st.Build.MultiWindow)
	return nil
}

func printMatches(w io.Writer, client *uiautomator2.Client, strategy, sel string) error {
	if err := client.CreateSession(nil); err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}

	elements, err := client.FindElements(strategy, sel)
	if err != nil {
		return err
	}
	if len(elements) == 0 {
		fmt.Fprintln(w, "No elements found")
		return nil
	}

	for i, el := range elements {
		fmt.Fprintf(w, "[%d] %s\n", i, el.ID())
		for _, name := range findAttributes {
			v, present, err := el.Attribute(name)
			if err != nil {
				if uiautomator2.IsNotFound(err) {
					fmt.Fprintln(w, "    (element vanished)")
					break
				}
				return err
			}
			if present {
				fmt.Fprintf(w, "    %-13s %s\n", name+":", v)
			}
		}
	}
	return nil
}

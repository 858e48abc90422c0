package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/tsinin/message-broker/internal/config"
	"github.com/tsinin/message-broker/internal/model"
	"github.com/tsinin/message-broker/pkg/client"
)

// ================================================================
// Color helpers
// ================================================================

const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorCyan   = "\033[36m"
	colorBold   = "\033[1m"
	colorDim    = "\033[2m"
)

func green(s string) string  { return colorGreen + s + colorReset }
func red(s string) string    { return colorRed + s + colorReset }
func cyan(s string) string   { return colorCyan + s + colorReset }
func yellow(s string) string { return colorYellow + s + colorReset }
func bold(s string) string   { return colorBold + s + colorReset }
func dim(s string) string    { return colorDim + s + colorReset }

func fail(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "%s %s\n", red("error:"), fmt.Sprintf(format, args...))
	os.Exit(1)
}

// ================================================================
// Commands
// ================================================================

func cmdPost(c *client.Client, topic, data string, binary bool) {
	msg := model.NewTextMessage(data)
	if binary {
		msg = model.NewBinaryMessage([]byte(data))
	}
	if err := c.PostMessage(msg, topic); err != nil {
		fail("post: %v", err)
	}
	fmt.Printf("%s posted %d bytes to %s\n", green("ok:"), len(data), bold(topic))
}

func cmdGet(c *client.Client, topic string, blocking bool) {
	if blocking {
		fmt.Println(dim("waiting for a message..."))
	}
	msg, err := c.GetMessage(topic, blocking)
	if err != nil {
		fail("get: %v", err)
	}
	if msg == nil {
		fmt.Printf("%s topic %s is empty\n", yellow("empty:"), bold(topic))
		return
	}
	fmt.Printf("%s [%s] %s\n", green("ok:"), cyan(msg.DataType.String()), string(msg.Data))
}

func cmdBench(c *client.Client, topic string, count int) {
	start := time.Now()
	for i := 0; i < count; i++ {
		msg := model.NewTextMessage(fmt.Sprintf("bench-%d", i))
		if err := c.PostMessage(msg, topic); err != nil {
			fail("bench post %d: %v", i, err)
		}
	}
	postDur := time.Since(start)

	start = time.Now()
	for i := 0; i < count; i++ {
		msg, err := c.GetMessage(topic, false)
		if err != nil {
			fail("bench get %d: %v", i, err)
		}
		if msg == nil {
			fail("bench get %d: topic drained early", i)
		}
	}
	getDur := time.Since(start)

	fmt.Printf("%s %d messages\n", bold("bench:"), count)
	fmt.Printf("  post: %v (%.0f msg/s)\n", postDur, float64(count)/postDur.Seconds())
	fmt.Printf("  get:  %v (%.0f msg/s)\n", getDur, float64(count)/getDur.Seconds())
}

func cmdStats(httpAddr string) {
	resp, err := http.Get("http://" + httpAddr + "/v1/stats")
	if err != nil {
		fail("stats: %v", err)
	}
	defer resp.Body.Close()

	var result map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		fail("stats decode: %v", err)
	}
	out, _ := json.MarshalIndent(result, "", "  ")
	fmt.Println(string(out))
}

func interactive(c *client.Client, httpAddr string, count int) {
	fmt.Println(bold("broker-cli interactive mode"), dim("(type 'help' for commands, 'quit' to exit)"))
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print(cyan("> "))
		if !scanner.Scan() {
			return
		}
		parts := strings.Fields(scanner.Text())
		if len(parts) == 0 {
			continue
		}
		switch parts[0] {
		case "quit", "exit":
			return
		case "help":
			printUsage()
		case "post":
			if len(parts) < 3 {
				fmt.Println(red("usage: post <topic> <data>"))
				continue
			}
			cmdPost(c, parts[1], strings.Join(parts[2:], " "), false)
		case "get":
			if len(parts) != 2 {
				fmt.Println(red("usage: get <topic>"))
				continue
			}
			cmdGet(c, parts[1], false)
		case "getb":
			if len(parts) != 2 {
				fmt.Println(red("usage: getb <topic>"))
				continue
			}
			cmdGet(c, parts[1], true)
		case "bench":
			if len(parts) != 2 {
				fmt.Println(red("usage: bench <topic>"))
				continue
			}
			cmdBench(c, parts[1], count)
		case "stats":
			cmdStats(httpAddr)
		default:
			fmt.Println(red("unknown command: " + parts[0]))
		}
	}
}

func printUsage() {
	fmt.Println(bold("commands:"))
	fmt.Println("  post <topic> <data>   post a text message")
	fmt.Println("  get <topic>           nonblocking get")
	fmt.Println("  getb <topic>          blocking get (waits for a post)")
	fmt.Println("  bench <topic>         post/get throughput benchmark")
	fmt.Println("  stats                 broker stats over HTTP")
}

func main() {
	configPath := flag.String("config", "client.yaml", "path to client configuration file")
	addr := flag.String("addr", "", "server address (overrides config)")
	port := flag.Int("port", 0, "server port (overrides config)")
	httpAddr := flag.String("http-addr", "127.0.0.1:8080", "broker HTTP endpoint for stats")
	binary := flag.Bool("binary", false, "post data as Binary instead of Text")
	count := flag.Int("n", 1000, "message count for bench")
	flag.Parse()

	cfg, err := config.LoadClient(*configPath)
	if err != nil {
		fail("load config: %v", err)
	}
	if *addr != "" {
		cfg.Client.ServerAddress = *addr
	}
	if *port != 0 {
		cfg.Client.ServerPort = *port
	}

	c := client.New(cfg.Client.ServerAddress, cfg.Client.ServerPort)
	if err := c.Connect(); err != nil {
		fail("%v", err)
	}
	defer c.Close()

	args := flag.Args()
	if len(args) == 0 {
		interactive(c, *httpAddr, *count)
		return
	}

	switch args[0] {
	case "post":
		if len(args) < 3 {
			fail("usage: broker-cli post <topic> <data>")
		}
		cmdPost(c, args[1], strings.Join(args[2:], " "), *binary)
	case "get":
		if len(args) != 2 {
			fail("usage: broker-cli get <topic>")
		}
		cmdGet(c, args[1], false)
	case "getb":
		if len(args) != 2 {
			fail("usage: broker-cli getb <topic>")
		}
		cmdGet(c, args[1], true)
	case "bench":
		if len(args) != 2 {
			fail("usage: broker-cli bench <topic>")
		}
		cmdBench(c, args[1], *count)
	case "stats":
		cmdStats(*httpAddr)
	default:
		printUsage()
		os.Exit(1)
	}
}

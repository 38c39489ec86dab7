// Command hramfs is a small interactive client for a running hramd
// device server: it drives a Driver over a TCP transport and exposes
// open/read/write/seek/close as line commands, mainly useful for manual
// poking at a hramd instance during development.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/complyue/hramfs/pkg/hramfs"
	"github.com/complyue/hramfs/pkg/transport"

	"github.com/golang/glog"
)

func init() {
	if glog.V(0) {
		if err := flag.CommandLine.Set("logtostderr", "true"); err != nil {
			log.Printf("Failed changing glog default destination, err: %s", err)
		}
	}
}

var (
	hramdAddr     string
	cacheSize     int
	maxCartridges int
	maxFrames     int
)

func init() {
	flag.StringVar(&hramdAddr, "hramd", "127.0.0.1:4040", "`addr` of the hramd device server to connect to")
	flag.IntVar(&cacheSize, "cache", 8, "frame cache capacity")
	flag.IntVar(&maxCartridges, "cartridges", 4, "number of cartridges the device exposes")
	flag.IntVar(&maxFrames, "frames", 64, "number of frames per cartridge the device exposes")
}

func main() {
	flag.Usage = func() {
		fmt.Fprint(flag.CommandLine.Output(), `
This is the hramfs interactive client, all options:

`)
		flag.PrintDefaults()
	}
	flag.Parse()

	tx := transport.NewTCP(hramdAddr)
	defer tx.Close()

	drv := hramfs.New(tx, maxCartridges, maxFrames)
	if err := drv.SetCacheSize(cacheSize); err != nil {
		fmt.Printf("Error setting cache size: %+v\n", err)
		os.Exit(1)
	}
	if err := drv.PowerOn(); err != nil {
		fmt.Printf("Error powering on against %s: %+v\n", hramdAddr, err)
		os.Exit(1)
	}
	defer drv.PowerOff()

	fmt.Printf("Connected to hramd at %s, cache capacity %d.\n", hramdAddr, cacheSize)
	fmt.Println(`Commands:
  open <name>
  close <handle>
  seek <handle> <offset>
  read <handle> <n>
  write <handle> <text>
  quit`)

	handles := make(map[int]int16)
	nextLocal := 1

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			return
		}
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}

		switch fields[0] {
		case "quit", "exit":
			return

		case "open":
			if len(fields) != 2 {
				fmt.Println("usage: open <name>")
				continue
			}
			h, err := drv.Open(fields[1])
			if err != nil {
				fmt.Printf("error: %+v\n", err)
				continue
			}
			local := nextLocal
			nextLocal++
			handles[local] = h
			fmt.Printf("opened %q as local handle %d (device handle %d)\n", fields[1], local, h)

		case "close":
			h, ok := localHandle(fields, handles)
			if !ok {
				continue
			}
			if err := drv.Close(h); err != nil {
				fmt.Printf("error: %+v\n", err)
				continue
			}
			fmt.Println("closed")

		case "seek":
			if len(fields) != 3 {
				fmt.Println("usage: seek <handle> <offset>")
				continue
			}
			h, ok := localHandle(fields, handles)
			if !ok {
				continue
			}
			offset, err := strconv.ParseUint(fields[2], 10, 32)
			if err != nil {
				fmt.Printf("bad offset: %v\n", err)
				continue
			}
			if err := drv.Seek(h, uint32(offset)); err != nil {
				fmt.Printf("error: %+v\n", err)
				continue
			}
			fmt.Println("ok")

		case "read":
			if len(fields) != 3 {
				fmt.Println("usage: read <handle> <n>")
				continue
			}
			h, ok := localHandle(fields, handles)
			if !ok {
				continue
			}
			n, err := strconv.ParseUint(fields[2], 10, 32)
			if err != nil {
				fmt.Printf("bad count: %v\n", err)
				continue
			}
			buf := make([]byte, n)
			got, err := drv.Read(h, buf, uint32(n))
			if err != nil {
				fmt.Printf("error: %+v\n", err)
				continue
			}
			fmt.Printf("read %d bytes: %q\n", got, buf[:got])

		case "write":
			if len(fields) < 3 {
				fmt.Println("usage: write <handle> <text>")
				continue
			}
			h, ok := localHandle(fields, handles)
			if !ok {
				continue
			}
			text := strings.Join(fields[2:], " ")
			n, err := drv.Write(h, []byte(text), uint32(len(text)))
			if err != nil {
				fmt.Printf("error: %+v\n", err)
				continue
			}
			fmt.Printf("wrote %d bytes\n", n)

		default:
			fmt.Printf("unknown command %q\n", fields[0])
		}
	}
}

func localHandle(fields []string, handles map[int]int16) (int16, bool) {
	if len(fields) < 2 {
		fmt.Println("missing handle")
		return 0, false
	}
	local, err := strconv.Atoi(fields[1])
	if err != nil {
		fmt.Printf("bad handle: %v\n", err)
		return 0, false
	}
	h, ok := handles[local]
	if !ok {
		fmt.Printf("no such local handle %d\n", local)
		return 0, false
	}
	return h, true
}

// Command scrubctl is a thin CLI front end over a ScrubberInstance: it
// populates the control surface from flags, starts one round, waits for
// it to finish, and exits 1 if any VERIFY call reported a non-good SCSI
// error category, 0 otherwise. The exit code does not say which category
// was seen; open failures map to their own codes (see exitCodeFor).
package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	goscrub "github.com/gamvros/goscrub"
	"github.com/gamvros/goscrub/internal/logging"
)

func main() {
	var (
		device    = flag.String("device", "", "path to the SCSI pass-through device, e.g. /dev/sg0")
		count     = flag.Uint64("count", 0, "scount: number of sectors to scrub (0 = whole device)")
		lba       = flag.Uint64("lba", 0, "spoint: starting sector")
		regionKB  = flag.Uint64("region", 0, "regsize in KB (0 = keep default)")
		segmentKB = flag.Uint64("segment", 0, "segsize in KB (0 = keep default)")
		technique = flag.String("technique", "SEQL", "traversal strategy: SEQL|0, STAG|1, BOTH|2, FIXED")
		vrprotect = flag.Uint("vrprotect", 0, "VRProtect field, 0-7")
		dpo       = flag.Bool("dpo", true, "set DPO (disable page out) on VERIFY calls")
		verbose   = flag.Uint("verbose", 1, "log verbosity, 0-3")
		debug     = flag.Bool("debug", false, "shorthand for --verbose=3")
	)
	flag.Parse()

	if *device == "" {
		fmt.Fprintln(os.Stderr, "scrubctl: --device is required")
		os.Exit(2)
	}

	verboseLevel := uint8(*verbose)
	if *debug {
		verboseLevel = 3
	}

	logCfg := logging.DefaultConfig()
	logCfg.Level = logging.LevelFromVerbose(verboseLevel)
	logger := logging.NewLogger(logCfg)
	logging.SetDefault(logger)

	inst, err := goscrub.Open(*device, goscrub.WithLogger(logger))
	if err != nil {
		logger.Error("failed to open device", "device", *device, "error", err.Error())
		os.Exit(exitCodeFor(err))
	}
	defer inst.Stop()

	if err := applyFlags(inst, *count, *lba, *regionKB, *segmentKB, *technique, uint8(*vrprotect), *dpo, verboseLevel); err != nil {
		logger.Error("invalid flag value", "error", err.Error())
		os.Exit(2)
	}

	inst.Start()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	if err := inst.Store("state", "on"); err != nil {
		logger.Error("failed to start round", "error", err.Error())
		os.Exit(1)
	}

	for {
		select {
		case <-sigCh:
			logger.Info("received shutdown signal, aborting round")
			inst.Store("state", "abort")
			time.Sleep(100 * time.Millisecond)
			reportAndExit(inst)
		case <-time.After(500 * time.Millisecond):
			snap := inst.Snapshot()
			if snap.State == "off" {
				reportAndExit(inst)
			}
		}
	}
}

func applyFlags(inst *goscrub.ScrubberInstance, count, lba, regionKB, segmentKB uint64, technique string, vrprotect uint8, dpo bool, verbose uint8) error {
	stores := map[string]string{
		"scount":    strconv.FormatUint(count, 10),
		"spoint":    strconv.FormatUint(lba, 10),
		"vrprotect": strconv.FormatUint(uint64(vrprotect), 10),
		"dpo":       onOff(dpo),
		"verbose":   strconv.FormatUint(uint64(verbose), 10),
	}
	if regionKB > 0 {
		stores["regsize"] = strconv.FormatUint(regionKB, 10)
	}
	if segmentKB > 0 {
		stores["segsize"] = strconv.FormatUint(segmentKB, 10)
	}

	strategy, err := strategyFromTechnique(technique)
	if err != nil {
		return err
	}
	stores["strategy"] = strategy

	for attr, value := range stores {
		if err := inst.Store(attr, value); err != nil {
			return fmt.Errorf("store %s=%s: %w", attr, value, err)
		}
	}
	return nil
}

// strategyFromTechnique maps sg_scrubber's --technique token set onto the
// control surface's strategy attribute. BOTH has no single-round
// equivalent in this engine (one round runs one strategy), so it maps to
// Staggered, the more thorough of the two regular strategies.
func strategyFromTechnique(technique string) (string, error) {
	switch strings.ToUpper(technique) {
	case "SEQL", "0":
		return "seql", nil
	case "STAG", "1":
		return "stag", nil
	case "BOTH", "2":
		return "stag", nil
	case "FIXED":
		return "fixed", nil
	default:
		return "", fmt.Errorf("unknown technique %q", technique)
	}
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}

func reportAndExit(inst *goscrub.ScrubberInstance) {
	if m := inst.Metrics(); m != nil {
		snap := m.Snapshot()
		fmt.Printf("verified=%d errors=%d rounds=%d\n", snap.VerifyCount, snap.VerifyErrors, snap.RoundsCompleted)
		if snap.VerifyErrors > 0 {
			os.Exit(1)
		}
	}
	os.Exit(0)
}

// exitCodeFor maps a goscrub.Error's category onto a process exit code.
func exitCodeFor(err error) int {
	if goscrub.IsCode(err, goscrub.ErrCodePermissionDenied) {
		return 77
	}
	if goscrub.IsCode(err, goscrub.ErrCodeDeviceNotFound) {
		return 66
	}
	return 1
}

// Package config provides configuration parsing for fiber projects.
//
// The configuration is stored in fiber.json at the project root.
// This package handles loading, saving, and validating configuration.
//
// # Configuration File Structure
//
//	{
//	  "scheduler": {
//	    "frameBudget": "5ms",
//	    "fallbackThrottle": "500ms"
//	  },
//	  "renderer": {
//	    "mode": "concurrent",
//	    "nestedUpdateLimit": 50
//	  },
//	  "server": {
//	    "addr": "localhost:7070",
//	    "tick": "1s"
//	  },
//	  "metrics": {
//	    "namespace": "fiber"
//	  },
//	  "commitlog": {
//	    "path": "logs/commits.jsonl",
//	    "s3Bucket": "my-bucket",
//	    "s3Prefix": "commits/",
//	    "s3Region": "eu-west-1"
//	  },
//	  "log": {"level": "debug", "format": "json"},
//	  "scenarios": "scenarios"
//	}
//
// # Usage
//
//	cfg, err := config.Load(".")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := cfg.Validate(); err != nil {
//	    log.Fatal(err)
//	}
//
//	fmt.Println("Frame budget:", cfg.FrameBudget())
package config

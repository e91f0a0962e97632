// The agent is the headless kiosk client: it registers the machine with
// the backend on first run (issuing the machine key and writing
// config.json) and posts student login sessions afterwards.
package main

import (
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/labtrack/labtrack_backend/internal/client"
	"github.com/labtrack/labtrack_backend/internal/sysinfo"
	"github.com/labtrack/labtrack_backend/internal/utils"
)

func main() {
	_ = godotenv.Load()

	configPath := flag.String("config", "config.json", "path to the local machine config")
	register := flag.Bool("register", false, "register this machine with the backend")
	machineName := flag.String("name", "", "machine name (register)")
	motherboard := flag.String("motherboard", "", "motherboard model (register)")
	memory := flag.String("memory", "", "installed memory (register)")
	storage := flag.String("storage", "", "installed storage (register)")
	labID := flag.String("lab", "", "lab id this machine belongs to (register)")
	login := flag.Bool("login", false, "post a student login session")
	studentName := flag.String("student", "", "student name (login)")
	classVar := flag.String("class", "", "student class (login)")
	password := flag.String("password", "", "student password (login)")
	flag.Parse()

	baseURL := os.Getenv("BASE_URL")
	apiKey := os.Getenv("WEB_API_KEY")
	if baseURL == "" {
		log.Fatal("BASE_URL is not set")
	}
	api := client.New(baseURL, apiKey)

	switch {
	case *register:
		if err := runRegister(api, *configPath, *machineName, *motherboard, *memory, *storage, *labID); err != nil {
			log.Fatal(err)
		}
	case *login:
		if err := runLogin(api, *configPath, *studentName, *classVar, *password); err != nil {
			log.Fatal(err)
		}
	default:
		runShow(api, *configPath)
	}
}

func runRegister(api *client.Client, configPath, name, motherboard, memory, storage, labID string) error {
	if _, err := client.LoadConfig(configPath); err == nil {
		return errors.New("this machine already has a config.json; delete it to re-register")
	}
	if name == "" || labID == "" {
		return errors.New("-name and -lab are required to register")
	}

	lab, err := api.GetLab(labID)
	if err != nil {
		return fmt.Errorf("lab lookup failed: %w", err)
	}

	key, err := client.NewMachineKey()
	if err != nil {
		return err
	}
	err = api.RegisterMachine(client.NewMachineConfig{
		MachineKey: key,
		MachineConfig: client.MachineConfig{
			MachineName:      name,
			Motherboard:      motherboard,
			Memory:           memory,
			Storage:          storage,
			StateCleanliness: "BOM",
			LastChecked:      utils.FormatDate(time.Now()),
			LabID:            labID,
		},
	})
	if err != nil {
		return fmt.Errorf("registration failed: %w", err)
	}

	cfg := &client.LocalConfig{
		MachineKey:  key,
		MachineName: name,
		LabName:     lab.LabName,
		Classes:     lab.Classes,
	}
	if err := client.SaveConfig(configPath, cfg); err != nil {
		return err
	}
	log.Println("machine registered, key stored in", configPath)
	return nil
}

func runLogin(api *client.Client, configPath, studentName, classVar, password string) error {
	cfg, err := client.LoadConfig(configPath)
	if err != nil {
		return errors.New("machine is not registered yet; run with -register first")
	}
	if studentName == "" || classVar == "" || password == "" {
		return errors.New("-student, -class and -password are required to log in")
	}

	info, err := sysinfo.Collect()
	if err != nil {
		log.Println("warning: hardware readings unavailable:", err)
	}
	err = api.PostSession(cfg.MachineKey, client.NewSession{
		StudentName:  studentName,
		Password:     password,
		ClassVar:     classVar,
		SessionStart: utils.FormatDateTime(time.Now()),
		CPUUsage:     info.CPUUsage,
		RAMUsage:     info.RAMUsage,
		CPUTemp:      info.CPUTemp,
	})
	if err != nil {
		return fmt.Errorf("login failed: %w", err)
	}
	log.Println("session registered for", studentName)
	return nil
}

func runShow(api *client.Client, configPath string) {
	cfg, err := client.LoadConfig(configPath)
	if err != nil {
		fmt.Println("machine is not registered (no config.json)")
		return
	}
	fmt.Println("machine_key:", cfg.MachineKey)
	fmt.Println("machine_name:", cfg.MachineName)

	remote, err := api.GetMachineConfig(cfg.MachineKey)
	if err != nil {
		fmt.Println("backend unreachable:", err)
		return
	}
	if remote == nil {
		fmt.Println("backend has no record of this machine")
		return
	}
	fmt.Println("lab_id:", remote.LabID)
	fmt.Println("state_cleanliness:", remote.StateCleanliness)
	fmt.Println("last_checked:", remote.LastChecked)
}

// roi-probe prints the ROI channel means and finger-gate verdict of every
// camera frame. It is used to tune the gate thresholds for a new device.
package main

import (
	"flag"
	"fmt"
	"image/color"
	"os"
	"time"

	"github.com/nvr-ai/go-ppg/images"
	"github.com/nvr-ai/go-ppg/ppg"
	"github.com/nvr-ai/go-ppg/util"
	"gocv.io/x/gocv"
)

func main() {
	var (
		deviceID   int
		resolution string
		showWindow bool
		recordDir  string
		format     string
		frames     int
	)
	flag.IntVar(&deviceID, "device", 0, "Video capture device ID")
	flag.StringVar(&resolution, "resolution", "480p", "Capture resolution preset")
	flag.BoolVar(&showWindow, "show-window", false, "Show the frame with the sampled region outlined")
	flag.StringVar(&recordDir, "record", "", "Write every frame to this directory for replay")
	flag.StringVar(&format, "format", string(images.FormatPNG), "Recording format: png, jpeg or webp")
	flag.IntVar(&frames, "frames", 0, "Stop after this many frames (0 runs until the device closes)")
	flag.Parse()

	res, ok := images.ResolutionByName(resolution)
	if !ok {
		fmt.Printf("unknown resolution %q, choose one of:\n", resolution)
		for _, r := range images.Resolutions() {
			fmt.Printf("   %s\n", r)
		}
		os.Exit(2)
	}

	webcam, err := gocv.OpenVideoCapture(deviceID)
	if err != nil {
		fmt.Println(err)
		return
	}
	defer webcam.Close()
	webcam.Set(gocv.VideoCaptureFrameWidth, float64(res.Width))
	webcam.Set(gocv.VideoCaptureFrameHeight, float64(res.Height))

	var window *gocv.Window
	if showWindow {
		window = gocv.NewWindow("ROI Probe")
		defer window.Close()
	}

	img := gocv.NewMat()
	defer img.Close()

	opts := images.DefaultROIOptions()
	gate := ppg.DefaultConfig().Gate
	green := color.RGBA{0, 255, 0, 0}
	red := color.RGBA{255, 0, 0, 0}

	fps := 0.0
	frameCount := 0
	lastTime := time.Now()

	fmt.Printf("start reading camera device: %v (%s)\n", deviceID, res)
	for n := 0; frames == 0 || n < frames; n++ {
		if ok := webcam.Read(&img); !ok {
			fmt.Printf("cannot read device %v\n", deviceID)
			return
		}
		if img.Empty() {
			continue
		}

		frameCount++
		currentTime := time.Now()
		if elapsed := currentTime.Sub(lastTime).Seconds(); elapsed >= 1.0 {
			fps = float64(frameCount) / elapsed
			frameCount = 0
			lastTime = currentTime
		}

		frame, err := img.ToImage()
		if err != nil {
			fmt.Printf("frame %d: %v\n", n, err)
			continue
		}
		means, err := images.SampleROI(frame, opts)
		if err != nil {
			fmt.Printf("frame %d: %v\n", n, err)
			continue
		}
		sample := ppg.ChannelSample{Red: means.Red, Green: means.Green, Blue: means.Blue}
		present := ppg.IsFingerPresent(sample, gate)

		fmt.Printf("frame %5d | R %6.2f G %6.2f B %6.2f | g/r %.2f b/r %.2f | finger: %-5t | FPS: %.2f\n",
			n, means.Red, means.Green, means.Blue, ratio(means.Green, means.Red), ratio(means.Blue, means.Red), present, fps)

		if recordDir != "" {
			encoded, err := images.NewImage(frame, images.ImageFormat(format))
			if err != nil {
				fmt.Printf("frame %d: %v\n", n, err)
				return
			}
			if _, err := util.WriteImageFile(recordDir, n, encoded); err != nil {
				fmt.Printf("frame %d: %v\n", n, err)
				return
			}
		}

		if window != nil {
			outline := red
			if present {
				outline = green
			}
			b := frame.Bounds()
			scale := max(float64(b.Dx())/float64(opts.CaptureWidth), float64(b.Dy())/float64(opts.CaptureHeight), 1)
			region := images.CenterRect(b, int(float64(opts.Width)*scale), int(float64(opts.Height)*scale))
			gocv.Rectangle(&img, region, outline, 2)
			window.IMShow(img)
			if window.WaitKey(1) >= 0 {
				return
			}
		}
	}
}

func ratio(a, b float64) float64 {
	if b == 0 {
		return 0
	}
	return a / b
}

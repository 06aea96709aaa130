// Package pv evaluates solar-panel (PV) detection on satellite imagery.
//
// Detections produced by an object-detection model are grouped per image,
// thresholded into a presence decision and summed into a predicted panel
// area. The result is scored against image-level ground truth.
//
// # Quick Start
//
//	ev, err := pv.NewEvaluator(pv.WithThreshold(0.5))
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	res := ev.Evaluate(detections, truth)
//	fmt.Printf("F1: %.3f  MAE: %.1f px²\n", res.Metrics.F1, res.Metrics.MAE)
//
// # Undefined Metrics
//
// Classification ratios with a zero denominator are reported as 0. Area
// metrics over an empty set are NaN, and serialize as null.
//
// # Detectors
//
// Detections come from a Detector. The roboflow package implements one over
// the hosted inference API and the inference package one over a local ONNX
// export of the model.
package pv

package analyzer

import (
	"fmt"
	"sort"
	"strings"

	"github.com/poselab/swinglab/internal/pose"
)

// ServePrompt asks for a phase-by-phase tennis serve evaluation with a
// strict JSON response, so phase timestamps can drive frame
// extraction afterwards.
const ServePrompt = `You are an expert tennis biomechanics coach. Your task is to analyze the provided tennis serve video with pose keypoints overlay. Evaluate the serve by breaking it down into five distinct phases.

For each phase, analyze the critical biomechanical markers and provide:
- Frame timestamp for the exact frame you are analyzing
- Score from 1 to 10 (1 being poor, 10 being perfect)
- Concise, actionable feedback (maximum 20 words)
- Key observations about technique

**PHASE ANALYSIS CRITERIA:**

PHASE 1: Preparation & Stance
Focus: A balanced and athletic starting position.

PHASE 2: Loading & Toss
Focus: Evaluate the "leg drive" and body tilt. Look for a front knee flexion angle greater than 15 degrees. Observe the lateral rearward tilt of the shoulders and pelvis to prepare for trunk rotation. The toss should be consistent and placed correctly.

PHASE 3: Cocking Phase (Trophy Pose)
Focus: Assess the shoulder and arm position at the peak of the backswing. The upper arm should be positioned slightly anterior to (in front of) the plane of the body, not directly out to the side or behind.

PHASE 4: Acceleration & Impact
Focus: Look for a powerful and rapid sequence of movements. This includes a vigorous knee extension driving upwards, a quick reversal of trunk rotation (from hyperextension to flexion), and rapid internal rotation of the shoulder as the racquet accelerates towards the ball.

PHASE 5: Follow-Through
Focus: Analyze the deceleration of the arm and body. The motion should be fluid and complete, with the arm crossing the body to safely dissipate energy and prevent injury.

**IMPORTANT: You must respond with ONLY valid JSON in the exact format specified below. Do not include any text before or after the JSON.**
**REQUIRED JSON OUTPUT FORMAT:**

{
  "analysis_type": "tennis_serve_biomechanics",
  "overall_score": 0,
  "phases": {
    "preparation_stance": {
      "frame_timestamp": "0:04",
      "score": 0,
      "feedback": "Brief actionable feedback under 20 words",
      "observations": ["Key observation 1", "Key observation 2"]
    },
    "loading_toss": {
      "frame_timestamp": "0:00",
      "score": 0,
      "feedback": "Brief actionable feedback under 20 words",
      "observations": ["Key observation 1", "Key observation 2"]
    },
    "cocking_trophy": {
      "frame_timestamp": "0:00",
      "score": 0,
      "feedback": "Brief actionable feedback under 20 words",
      "observations": ["Key observation 1", "Key observation 2"]
    },
    "acceleration_impact": {
      "frame_timestamp": "0:00",
      "score": 0,
      "feedback": "Brief actionable feedback under 20 words",
      "observations": ["Key observation 1", "Key observation 2"]
    },
    "follow_through": {
      "frame_timestamp": "0:00",
      "score": 0,
      "feedback": "Brief actionable feedback under 20 words",
      "observations": ["Key observation 1", "Key observation 2"]
    }
  },
  "recommendations": {
    "improvement_areas": ["Area 1", "Area 2", "Area 3"],
    "technical_adjustments": ["Adjustment 1", "Adjustment 2"],
    "training_focus": ["Focus area 1", "Focus area 2"],
    "comparison_to_pro": "Brief comparison to professional technique standards"
  },
  "biomechanical_summary": {
    "strengths": ["Strength 1", "Strength 2"],
    "weaknesses": ["Weakness 1", "Weakness 2"],
    "injury_risk_factors": ["Risk factor 1", "Risk factor 2"],
    "efficiency_rating": 0
  }
}

Base your analysis on the pose keypoints data and visual analysis of the serve motion. Ensure all scores are integers between 1-10, and the overall_score is the average of all phase scores.`

// GeneralPrompt covers arbitrary sports footage without a fixed phase
// schema.
const GeneralPrompt = `Analyze this sports video with pose keypoints data. Please provide:

**MOVEMENT ANALYSIS:**
- Identify the sport and specific movement/technique being performed
- Break down the movement into key phases
- Assess technique quality and efficiency

**BIOMECHANICAL INSIGHTS:**
- Joint coordination and sequencing
- Power generation and energy transfer
- Balance and stability analysis
- Movement efficiency assessment

**TECHNICAL FEEDBACK:**
- Strengths in the technique
- Areas needing improvement
- Specific technical corrections
- Training recommendations

**PERFORMANCE INDICATORS:**
- Movement quality rating
- Consistency assessment
- Injury risk factors
- Comparison to optimal technique

Use the pose keypoints data to provide specific, actionable feedback on the athletic performance shown in the video.`

// PromptForType resolves a requested prompt type. "custom" requires a
// non-empty custom prompt.
func PromptForType(promptType, customPrompt string) (string, error) {
	switch promptType {
	case "tennis", "":
		return ServePrompt, nil
	case "general":
		return GeneralPrompt, nil
	case "custom":
		if strings.TrimSpace(customPrompt) == "" {
			return "", fmt.Errorf("custom prompt required for custom prompt type")
		}
		return customPrompt, nil
	default:
		return "", fmt.Errorf("invalid prompt type %q", promptType)
	}
}

// FormatContext renders supplementary data as plain text for the
// model. A *pose.Document under the "keypoints" key gets a summary
// with a sample frame; other values are stringified and truncated.
func FormatContext(extra map[string]any) string {
	if len(extra) == 0 {
		return ""
	}

	var lines []string
	if v, ok := extra["keypoints"]; ok {
		if doc, ok := v.(*pose.Document); ok && doc != nil {
			lines = append(lines,
				"POSE KEYPOINTS DATA:",
				fmt.Sprintf("- Total frames: %d", doc.Stats.TotalFrames),
				fmt.Sprintf("- Frames with pose: %d", doc.Stats.FramesWithPose),
				fmt.Sprintf("- Detection rate: %.1f%%", doc.Stats.DetectionRate*100),
				fmt.Sprintf("- Pose model: %s", doc.ModelInfo.Name),
				fmt.Sprintf("- Keypoints: %d", len(doc.ModelInfo.KeypointNames)))
			lines = append(lines, sampleFrameLines(doc.Frames)...)
		}
	}

	keys := make([]string, 0, len(extra))
	for k := range extra {
		if k != "keypoints" {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	for _, k := range keys {
		v := fmt.Sprint(extra[k])
		if len(v) > 200 {
			v = v[:200]
		}
		lines = append(lines, fmt.Sprintf("%s: %s", strings.ToUpper(k), v))
	}

	return strings.Join(lines, "\n")
}

// sampleFrameLines describes the first detection among the first ten
// frames, capped at five keypoints.
func sampleFrameLines(frames []pose.FrameRecord) []string {
	limit := len(frames)
	if limit > 10 {
		limit = 10
	}
	for i := 0; i < limit; i++ {
		rec := frames[i]
		if !rec.PoseDetected || rec.PoseData == nil {
			continue
		}
		lines := []string{fmt.Sprintf("- Sample frame %d keypoints:", rec.FrameNumber)}
		kps := rec.PoseData.Keypoints
		show := len(kps)
		if show > 5 {
			show = 5
		}
		for _, kp := range kps[:show] {
			lines = append(lines, fmt.Sprintf("  * %s: (%.3f, %.3f) conf=%.3f", kp.Name, kp.X, kp.Y, kp.Confidence))
		}
		if len(kps) > show {
			lines = append(lines, fmt.Sprintf("  * ... and %d more keypoints", len(kps)-show))
		}
		return lines
	}
	return nil
}
